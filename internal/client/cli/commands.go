package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/callshield/internal/client/models"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/timex"
)

// parseEvent turns "record" arguments into a number and event details.
func parseEvent(args []string) (string, domain.EventDetails, error) {
	if len(args) < 2 {
		return "", nil, fmt.Errorf("%w: usage: record <number> <action> [args]", common.ErrValidation)
	}
	number, action, rest := args[0], args[1], args[2:]

	switch action {
	case "block":
		return number, domain.BlockDetails{Reason: strings.Join(rest, " ")}, nil
	case "unblock":
		return number, domain.UnblockDetails{}, nil
	case "allow":
		return number, domain.AllowDetails{}, nil
	case "report":
		d := domain.ReportDetails{Severity: domain.DefaultReportSeverity}
		if len(rest) > 0 {
			if c, err := domain.ParseCategory(rest[0]); err == nil {
				d.Category = c
				rest = rest[1:]
			}
		}
		if len(rest) > 0 {
			if s, err := strconv.Atoi(rest[0]); err == nil {
				d.Severity = s
				rest = rest[1:]
			}
		}
		d.Comment = strings.Join(rest, " ")
		return number, d, nil
	case "call":
		if len(rest) == 0 {
			return "", nil, fmt.Errorf("%w: usage: record <number> call answered|rejected [duration]", common.ErrValidation)
		}
		var d domain.CallDetails
		switch rest[0] {
		case "answered":
			d.Answered = true
		case "rejected":
		default:
			return "", nil, fmt.Errorf("%w: call outcome must be answered or rejected", common.ErrValidation)
		}
		d.Incoming = true
		if len(rest) > 1 {
			dur, err := time.ParseDuration(rest[1])
			if err != nil {
				return "", nil, fmt.Errorf("%w: invalid call duration %q", common.ErrValidation, rest[1])
			}
			d.Duration = timex.Duration{Duration: dur}
		}
		return number, d, nil
	}
	return "", nil, fmt.Errorf("%w: unknown action %q", common.ErrValidation, action)
}

func (a *App) Record(ctx context.Context, args []string) error {
	number, d, err := parseEvent(args)
	if err != nil {
		return err
	}
	rec, err := a.manager.RecordEvent(ctx, number, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "recorded %s for %s: %s\n", d.EventType(), rec.PhoneNumber, formatScore(rec.ScoreResult))
	return nil
}

func (a *App) Lookup(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: lookup <number> [refresh]", common.ErrValidation)
	}
	refresh := len(args) > 1 && args[1] == "refresh"

	rep, err := a.manager.GetReputation(ctx, args[0], refresh)
	if err != nil {
		return err
	}
	writeReputation(a, rep)
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	st, err := a.manager.GetStatistics(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "numbers: %d  blocked: %d  accepted: %d  reported: %d\n",
		st.TotalNumbers, st.Blocked, st.Accepted, st.Reported)

	cats := make([]string, 0, len(st.ByCategory))
	for c := range st.ByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(a.out, "  %-10s %d\n", c, st.ByCategory[domain.Category(c)])
	}
	fmt.Fprintf(a.out, "pending sync: %d  last sync: %s\n", st.PendingSync, formatTime(st.LastSync))
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if !a.coord.Online() {
		return common.ErrOffline
	}
	if !a.coord.SyncPendingEvents(ctx) {
		fmt.Fprintln(a.out, "sync did not complete, will retry later")
		return nil
	}
	pending, err := a.coord.PendingCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "sync complete, %d item(s) pending\n", pending)
	return nil
}

func (a *App) Reconcile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: reconcile <number>", common.ErrValidation)
	}
	d, err := a.coord.ReconcileReputationData(ctx, args[0])
	if err != nil {
		return err
	}
	score := "none"
	if d.Score != nil {
		score = strconv.FormatFloat(*d.Score, 'f', 1, 64)
	}
	fmt.Fprintf(a.out, "reputation %s: score %s, category %s, reports %d, blocks %d, approvals %d\n",
		d.PhoneHash, score, d.Category, d.ReportCount, d.BlockCount, d.ApproveCount)
	return nil
}

func (a *App) Purge(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: purge <number> | purge all", common.ErrValidation)
	}
	if args[0] == "all" {
		if !Confirm(a.reader, "Forget every number on this device?", a.out) {
			fmt.Fprintln(a.out, "cancelled")
			return nil
		}
		if err := a.manager.PurgeAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "all numbers purged")
		return nil
	}
	if err := a.manager.Purge(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "number purged")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.coord.Stats(ctx)
	if err != nil {
		return err
	}
	mode := "offline"
	if st.Online {
		mode = "online"
	}
	fmt.Fprintf(a.out, "mode: %s  syncing: %t  pending: %d  last sync: %s\n",
		mode, st.Syncing, st.Pending, formatTime(st.LastSync))
	fmt.Fprintf(a.out, "synced: %d  failed attempts: %d  dropped: %d\n",
		st.TotalSynced, st.TotalFailed, st.TotalDropped)
	return nil
}

func formatScore(r models.ScoreResult) string {
	if r.Score == nil {
		return fmt.Sprintf("no score (%s)", r.Category)
	}
	return fmt.Sprintf("score %d (%s, confidence %d%%)", *r.Score, r.Category, r.Confidence)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

func writeReputation(a *App, rep *models.Reputation) {
	fmt.Fprintf(a.out, "%s: %s -> %s\n", rep.PhoneNumber, formatScore(rep.ScoreResult), rep.Action)
	for _, f := range rep.Factors {
		fmt.Fprintf(a.out, "  %+6.1f  %s\n", f.Impact, f.Description)
	}
	if rep.HasCommunityData && rep.Community != nil {
		fmt.Fprintf(a.out, "  community: %d block(s), %d report(s)\n", rep.Community.BlockCount, rep.Community.ReportCount)
	}
	if !rep.HasLocalData && !rep.HasCommunityData {
		fmt.Fprintln(a.out, "  no local or community data for this number")
	}
}
