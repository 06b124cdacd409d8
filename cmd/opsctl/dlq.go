package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
)

type deadLetterStore interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

type deadLetterView struct {
	EventID      uuid.UUID `json:"event_id"`
	EventType    string    `json:"event_type"`
	AggregateID  uuid.UUID `json:"aggregate_id"`
	Reason       string    `json:"reason"`
	Message      string    `json:"message,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	FailedAt     time.Time `json:"failed_at"`
}

func (c *cli) dlqCmd() *cobra.Command {
	dlq := &cobra.Command{Use: "dlq", Short: "Inspect and requeue dead-lettered outbox events"}

	var (
		eventType string
		reason    string
		since     time.Duration
		limit     int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := outbox.DLQFilter{EventType: enums.OutboxEventType(eventType), Limit: limit}
			if reason != "" {
				parsed, err := enums.ParseOutboxDLQErrorReason(reason)
				if err != nil {
					return fmt.Errorf("--reason: %w", err)
				}
				filter.Reason = parsed
			}
			if since > 0 {
				filter.Since = time.Now().UTC().Add(-since)
			}
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := a.Dead.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			views := deadLetterViews(rows)
			return c.print(views, func(w io.Writer) { renderDeadLetters(w, views) })
		},
	}
	list.Flags().StringVar(&eventType, "event-type", "", "only this event type")
	list.Flags().StringVar(&reason, "reason", "", "max_attempts or non_retryable")
	list.Flags().DurationVar(&since, "since", 0, "only failures newer than this, e.g. 24h")
	list.Flags().IntVar(&limit, "limit", 50, "rows to show")

	requeue := &cobra.Command{
		Use:   "requeue <event-id>",
		Short: "Put a dead-lettered event back in the outbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid event id: %w", err)
			}
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Dead.Requeue(cmd.Context(), id); err != nil {
				if errors.Is(err, outbox.ErrDeadLetterNotFound) {
					return fmt.Errorf("event %s is not dead-lettered", id)
				}
				return err
			}
			fmt.Fprintf(c.out, "event %s requeued\n", id)
			return nil
		},
	}

	dlq.AddCommand(list, requeue)
	return dlq
}

func deadLetterViews(rows []models.OutboxDLQ) []deadLetterView {
	out := make([]deadLetterView, 0, len(rows))
	for _, row := range rows {
		view := deadLetterView{
			EventID:      row.EventID,
			EventType:    string(row.EventType),
			AggregateID:  row.AggregateID,
			Reason:       string(row.ErrorReason),
			AttemptCount: row.AttemptCount,
			FailedAt:     row.FailedAt,
		}
		if row.ErrorMessage != nil {
			view.Message = *row.ErrorMessage
		}
		out = append(out, view)
	}
	return out
}

func renderDeadLetters(w io.Writer, views []deadLetterView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "no dead letters")
		return
	}
	tw := newTable(w, table.Row{"Event", "Type", "Reason", "Attempts", "Failed at", "Error"})
	for _, v := range views {
		tw.AppendRow(table.Row{v.EventID, v.EventType, v.Reason, v.AttemptCount, v.FailedAt.Format(time.RFC3339), v.Message})
	}
	tw.Render()
}
