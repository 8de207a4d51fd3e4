package engine

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/vovakirdan/bread/internal/console"
	"github.com/vovakirdan/bread/internal/events"
	"github.com/vovakirdan/bread/internal/jobs"
	"github.com/vovakirdan/bread/internal/rcs"
	"github.com/vovakirdan/bread/internal/storage"
)

const defaultHistoryLines = 10

// RecordRemoteCommand persists cmd on a job worker.
func (e *Engine) RecordRemoteCommand(cmd rcs.RemoteCommand) {
	rec := storage.RemoteCommandRecord{
		ConnID:  cmd.ConnID.String(),
		Peer:    cmd.Peer,
		Command: cmd.Command,
	}
	store := e.store
	err := e.jobs.Submit(jobs.CategoryGenericSlow, func() {
		if _, err := store.SaveRemoteCommand(rec); err != nil {
			e.logger.Warn("failed to save remote command", "peer", rec.Peer, "err", err)
		}
	})
	if err != nil {
		e.logger.Warn("remote command not recorded", "peer", rec.Peer, "err", err)
	}
}

func (e *Engine) onStateChanged(ev events.Event) {
	sc, ok := ev.(rcs.StateChanged)
	if !ok {
		return
	}

	var addr string
	switch sc.To {
	case rcs.RoleHost:
		addr = e.server.ListenAddress()
	case rcs.RoleClient:
		if addrs := e.server.ConnectionAddresses(); len(addrs) > 0 {
			addr = addrs[0]
		}
	}

	rec := storage.SessionEvent{
		FromRole: sc.From.String(),
		ToRole:   sc.To.String(),
		Address:  addr,
	}
	store := e.store
	err := e.jobs.Submit(jobs.CategoryGenericSlow, func() {
		if _, err := store.SaveSessionEvent(rec); err != nil {
			e.logger.Warn("failed to save session event", "to", rec.ToRole, "err", err)
		}
	})
	if err != nil {
		e.logger.Warn("session event not recorded", "to", rec.ToRole, "err", err)
	}
}

func (e *Engine) registerCommands() error {
	if err := e.console.RegisterCommand("jobs_info", ": Show job system usage.", e.jobsInfoCommand); err != nil {
		return err
	}
	return e.console.RegisterCommand("rcs_history", "[count] : Show the most recent remote commands. Default = 10", e.historyCommand)
}

func (e *Engine) jobsInfoCommand(console.Command) {
	st := e.jobs.Stats()
	e.console.Printf(console.SeverityInfo, "Jobs: %s/%s live, peak %s, %d workers",
		humanize.Comma(int64(st.Live)),
		humanize.Comma(int64(st.Capacity)),
		humanize.Comma(int64(st.HighWater)),
		st.Workers,
	)

	cats := make([]jobs.Category, 0, len(st.Pending))
	for c := range st.Pending {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	for _, c := range cats {
		e.console.Printf(console.SeverityDefault, "  %s: %s pending", c, humanize.Comma(int64(st.Pending[c])))
	}
}

func (e *Engine) historyCommand(cmd console.Command) {
	if e.store == nil {
		e.console.AddLog("Remote command history is disabled.", console.SeverityBad, false)
		return
	}

	limit := cmd.IntArg(0, defaultHistoryLines)
	if limit < 1 {
		limit = defaultHistoryLines
	}

	store := e.store
	err := e.jobs.Submit(jobs.CategoryGenericSlow, func() {
		recs, err := store.RecentRemoteCommands(limit)
		e.console.Defer(func() {
			e.printHistory(recs, err)
		})
	})
	if err != nil {
		e.console.AddLog(fmt.Sprintf("Failed to read history: %v", err), console.SeverityBad, false)
	}
}

func (e *Engine) printHistory(recs []storage.RemoteCommandRecord, err error) {
	if err != nil {
		e.console.AddLog(fmt.Sprintf("Failed to read history: %v", err), console.SeverityBad, false)
		return
	}
	if len(recs) == 0 {
		e.console.AddLog("No remote commands recorded.", console.SeverityInfo, false)
		return
	}

	e.console.AddLog("Recent Remote Commands", console.SeverityInfo, false)
	for _, r := range recs {
		e.console.Printf(console.SeverityDefault, "  %s  %s: %s", humanize.Time(r.CreatedAt), r.Peer, r.Command)
	}
}
