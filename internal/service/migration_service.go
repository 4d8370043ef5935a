package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/community-reward-bot/internal/metrics"
	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/runctx"
	"github.com/shinyyama/community-reward-bot/internal/snowid"
)

type MigrationKind string

const (
	MigrationKindMessages MigrationKind = "messages"
	MigrationKindForum    MigrationKind = "forum"
)

type RunState string

const (
	RunStateIdle           RunState = "idle"
	RunStatePaging         RunState = "paging"
	RunStateItemProcessing RunState = "item_processing"
	RunStateDone           RunState = "done"
	RunStateFailed         RunState = "failed"
)

// MigrationRun is the bookkeeping for one backfill. Processed is the count
// held against Limit: newly ingested messages for a channel, threads visited
// for a forum.
type MigrationRun struct {
	ID         string        `json:"id"`
	ChannelID  string        `json:"channelId"`
	Kind       MigrationKind `json:"kind"`
	State      RunState      `json:"state"`
	Limit      int           `json:"limit"`
	Pages      int           `json:"pages"`
	Fetched    int           `json:"fetched"`
	Processed  int           `json:"processed"`
	Ingested   int           `json:"ingested"`
	Rewarded   int           `json:"rewarded"`
	Duplicates int           `json:"duplicates"`
	Ignored    int           `json:"ignored"`
	Failed     int           `json:"failed"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}

type MigrationOptions struct {
	PageSize            int
	PageDelay           time.Duration
	ThreadReplyLimit    int
	ArchivedThreadLimit int
	DefaultLimit        int
	// MaxTrackedRuns bounds the in-memory registry; oldest finished runs go first.
	MaxTrackedRuns int
}

func (o *MigrationOptions) normalize() {
	if o.PageSize <= 0 || o.PageSize > 100 {
		o.PageSize = 100
	}
	if o.ThreadReplyLimit <= 0 {
		o.ThreadReplyLimit = 50
	}
	if o.ArchivedThreadLimit <= 0 {
		o.ArchivedThreadLimit = 100
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 1000
	}
	if o.MaxTrackedRuns <= 0 {
		o.MaxTrackedRuns = 100
	}
	if o.PageDelay < 0 {
		o.PageDelay = 0
	}
}

type MigrationService interface {
	// Start resolves the channel kind and runs the matching backfill in the
	// background. The returned run is a snapshot taken before work begins.
	Start(ctx context.Context, channelID string, limit int) (*MigrationRun, *ChannelInfo, error)
	MigrateMessages(ctx context.Context, channelID string, limit int) (*MigrationRun, error)
	MigrateForum(ctx context.Context, channelID string, limit int) (*MigrationRun, error)
	Get(id string) (*MigrationRun, bool)
	List() []MigrationRun
	// Wait blocks until every background run has finished.
	Wait()
}

type migrationService struct {
	source    ActivitySource
	activity  ActivityService
	directory IdentityDirectory
	opts      MigrationOptions

	mu   sync.Mutex
	runs map[string]*MigrationRun
	wg   sync.WaitGroup
}

func NewMigrationService(source ActivitySource, activity ActivityService, directory IdentityDirectory, opts MigrationOptions) MigrationService {
	opts.normalize()
	return &migrationService{
		source:    source,
		activity:  activity,
		directory: directory,
		opts:      opts,
		runs:      map[string]*MigrationRun{},
	}
}

func (s *migrationService) Start(ctx context.Context, channelID string, limit int) (*MigrationRun, *ChannelInfo, error) {
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	info, err := s.source.ChannelInfo(ctx, channelID)
	if err != nil {
		return nil, nil, fmt.Errorf("channel info %s: %w", channelID, err)
	}
	if info == nil {
		return nil, nil, ErrChannelNotFound
	}

	var kind MigrationKind
	switch info.Kind {
	case ChannelKindText:
		kind = MigrationKindMessages
	case ChannelKindForum:
		kind = MigrationKindForum
	default:
		return nil, info, ErrUnsupportedChannel
	}

	run := s.register(channelID, kind, limit)
	snap := s.snapshot(run)
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.execute(bg, run)
	}()
	return snap, info, nil
}

func (s *migrationService) MigrateMessages(ctx context.Context, channelID string, limit int) (*MigrationRun, error) {
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	run := s.register(channelID, MigrationKindMessages, limit)
	err := s.execute(ctx, run)
	return s.snapshot(run), err
}

func (s *migrationService) MigrateForum(ctx context.Context, channelID string, limit int) (*MigrationRun, error) {
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	run := s.register(channelID, MigrationKindForum, limit)
	err := s.execute(ctx, run)
	return s.snapshot(run), err
}

func (s *migrationService) Get(id string) (*MigrationRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, false
	}
	cp := *run
	return &cp, true
}

func (s *migrationService) List() []MigrationRun {
	s.mu.Lock()
	out := make([]MigrationRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, *r)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (s *migrationService) Wait() {
	s.wg.Wait()
}

func (s *migrationService) execute(ctx context.Context, run *MigrationRun) error {
	ctx = runctx.WithChannelID(runctx.WithRunID(ctx, run.ID), run.ChannelID)
	log.Printf("[migrate] run=%s channel=%s kind=%s limit=%d stage=start", run.ID, run.ChannelID, run.Kind, run.Limit)

	var err error
	switch run.Kind {
	case MigrationKindMessages:
		var n int
		n, err = s.pageMessages(ctx, run, run.ChannelID, "", false, run.Limit)
		s.update(run, func(r *MigrationRun) { r.Processed = n })
	case MigrationKindForum:
		err = s.migrateForum(ctx, run)
	default:
		err = fmt.Errorf("unknown migration kind %q", run.Kind)
	}
	s.finish(ctx, run, err)
	return err
}

// pageMessages walks a channel's history newest first, 100 at a time, using
// the oldest id of each page as the next cursor. It stops at an empty page or
// once limit items were newly ingested. scope overrides the pricing channel
// and asReply forces the comment type.
func (s *migrationService) pageMessages(ctx context.Context, run *MigrationRun, sourceID, scope string, asReply bool, limit int) (int, error) {
	ingested := 0
	before := ""
	for ingested < limit {
		if before != "" {
			if err := s.pause(ctx); err != nil {
				return ingested, err
			}
		}

		s.setState(run, RunStatePaging)
		size := s.opts.PageSize
		if rest := limit - ingested; rest < size {
			size = rest
		}
		page, err := s.source.FetchMessagesBefore(ctx, sourceID, before, size)
		if err != nil {
			return ingested, fmt.Errorf("fetch messages channel=%s before=%q: %w", sourceID, before, err)
		}
		s.update(run, func(r *MigrationRun) {
			r.Pages++
			r.Fetched += len(page)
		})
		if len(page) == 0 {
			break
		}

		s.setState(run, RunStateItemProcessing)
		ids := make([]string, 0, len(page))
		for _, msg := range page {
			ids = append(ids, msg.ID)
			if msg.Author.Bot || msg.System || msg.IsThreadStarter() {
				s.count(run, IngestIgnored)
				continue
			}
			item := messageItem(msg, scope)
			if asReply {
				item.EventType = model.EventTypeComment
			}
			if s.processItem(ctx, run, item) {
				ingested++
			}
		}

		next := snowid.Oldest(ids)
		if next == "" || next == before {
			break
		}
		before = next
		log.Printf("[migrate] run=%s channel=%s progress=%d/%d", runctx.RunID(ctx), sourceID, ingested, limit)
	}
	return ingested, nil
}

// migrateForum reads one page of active and one page of archived threads,
// then ingests each thread as a forum post and its replies as comments.
func (s *migrationService) migrateForum(ctx context.Context, run *MigrationRun) error {
	s.setState(run, RunStatePaging)
	active, err := s.source.FetchActiveThreads(ctx, run.ChannelID)
	if err != nil {
		return fmt.Errorf("fetch active threads channel=%s: %w", run.ChannelID, err)
	}
	s.update(run, func(r *MigrationRun) { r.Pages++; r.Fetched += len(active) })

	if err := s.pause(ctx); err != nil {
		return err
	}
	archived, err := s.source.FetchArchivedThreads(ctx, run.ChannelID, s.opts.ArchivedThreadLimit)
	if err != nil {
		return fmt.Errorf("fetch archived threads channel=%s: %w", run.ChannelID, err)
	}
	s.update(run, func(r *MigrationRun) { r.Pages++; r.Fetched += len(archived) })

	s.setState(run, RunStateItemProcessing)
	visited := 0
	for _, th := range mergeThreads(active, archived) {
		if visited >= run.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		visited++
		s.update(run, func(r *MigrationRun) { r.Processed = visited })
		s.processThread(ctx, run, th)
	}
	return nil
}

// processThread never fails the run: owner lookups and reply pages are
// item-level work.
func (s *migrationService) processThread(ctx context.Context, run *MigrationRun, th SourceThread) {
	if th.OwnerID != "" {
		item, err := threadItem(ctx, s.directory, th, run.ChannelID)
		if err != nil {
			s.fail(ctx, run, th.ID, err)
		} else {
			s.processItem(ctx, run, item)
		}
	}
	// replies carry their own ids, so they are walked even when the post
	// itself was already recorded
	if _, err := s.pageMessages(ctx, run, th.ID, run.ChannelID, true, s.opts.ThreadReplyLimit); err != nil {
		s.fail(ctx, run, th.ID, err)
	}
	s.setState(run, RunStateItemProcessing)
}

// processItem reports whether the item was newly ingested.
func (s *migrationService) processItem(ctx context.Context, run *MigrationRun, item ActivityItem) bool {
	res, err := s.activity.Ingest(ctx, SourceMigration, item)
	if err != nil {
		s.fail(ctx, run, item.ExternalID, err)
		return false
	}
	s.count(run, res.Status)
	if res.Status != IngestIngested {
		return false
	}
	if res.Reward != nil && res.Reward.Decision == DecisionGranted {
		s.update(run, func(r *MigrationRun) { r.Rewarded++ })
	}
	return true
}

func (s *migrationService) count(run *MigrationRun, status IngestStatus) {
	metrics.MigrationItems.WithLabelValues(string(status)).Inc()
	s.update(run, func(r *MigrationRun) {
		switch status {
		case IngestIngested:
			r.Ingested++
		case IngestDuplicate:
			r.Duplicates++
		case IngestIgnored:
			r.Ignored++
		}
	})
}

func (s *migrationService) fail(ctx context.Context, run *MigrationRun, itemID string, err error) {
	metrics.MigrationItems.WithLabelValues("failed").Inc()
	s.update(run, func(r *MigrationRun) { r.Failed++ })
	log.Printf("[migrate] run=%s channel=%s item=%s err=%v", runctx.RunID(ctx), runctx.ChannelID(ctx), itemID, err)
}

func (s *migrationService) pause(ctx context.Context) error {
	if s.opts.PageDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.opts.PageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *migrationService) finish(ctx context.Context, run *MigrationRun, err error) {
	now := time.Now().UTC()
	s.update(run, func(r *MigrationRun) {
		r.FinishedAt = &now
		if err != nil {
			r.State = RunStateFailed
			r.Error = err.Error()
			return
		}
		r.State = RunStateDone
	})
	snap := s.snapshot(run)
	metrics.MigrationRuns.WithLabelValues(string(snap.Kind), string(snap.State)).Inc()
	log.Printf("[migrate] run=%s channel=%s state=%s processed=%d ingested=%d rewarded=%d duplicates=%d ignored=%d failed=%d err=%v",
		runctx.RunID(ctx), runctx.ChannelID(ctx), snap.State, snap.Processed, snap.Ingested, snap.Rewarded, snap.Duplicates, snap.Ignored, snap.Failed, err)
}

func (s *migrationService) register(channelID string, kind MigrationKind, limit int) *MigrationRun {
	run := &MigrationRun{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Kind:      kind,
		State:     RunStateIdle,
		Limit:     limit,
		StartedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.runs[run.ID] = run
	return run
}

func (s *migrationService) pruneLocked() {
	if len(s.runs) < s.opts.MaxTrackedRuns {
		return
	}
	var oldest *MigrationRun
	for _, r := range s.runs {
		if r.FinishedAt == nil {
			continue
		}
		if oldest == nil || r.StartedAt.Before(oldest.StartedAt) {
			oldest = r
		}
	}
	if oldest != nil {
		delete(s.runs, oldest.ID)
	}
}

func (s *migrationService) update(run *MigrationRun, fn func(r *MigrationRun)) {
	s.mu.Lock()
	fn(run)
	s.mu.Unlock()
}

func (s *migrationService) setState(run *MigrationRun, state RunState) {
	s.update(run, func(r *MigrationRun) { r.State = state })
}

func (s *migrationService) snapshot(run *MigrationRun) *MigrationRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	return &cp
}

// mergeThreads concatenates thread pages, keeping the first occurrence of
// each id.
func mergeThreads(pages ...[]SourceThread) []SourceThread {
	seen := map[string]bool{}
	var out []SourceThread
	for _, page := range pages {
		for _, th := range page {
			if seen[th.ID] {
				continue
			}
			seen[th.ID] = true
			out = append(out, th)
		}
	}
	return out
}
