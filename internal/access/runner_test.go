package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/scanboard/internal/catalog"
)

func waitCommit(t *testing.T, ch <-chan Commit) Commit {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for commit")
		return Commit{}
	}
}

func startRunner(t *testing.T, ctx context.Context, cat *catalog.Catalogue) (*Handle, ChanSource, <-chan Commit) {
	t.Helper()
	src := make(ChanSource, 8)
	commits := make(chan Commit, 8)
	cfg := DefaultConfig()
	cfg.Interval = time.Hour

	h, err := Start(ctx, src, cat, cfg, WithEngineOptions(WithCommitHandler(func(c Commit) {
		commits <- c
	})))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return h, src, commits
}

func TestRunnerCommitsFromSource(t *testing.T) {
	h, src, commits := startRunner(t, context.Background(), flat(t, "x", "y"))
	defer Stop(h)

	if h.ID() == "" {
		t.Error("ID() is empty")
	}
	if st := h.Snapshot().State; st.Phase != PhaseScanning {
		t.Errorf("initial phase = %v, want scanning", st.Phase)
	}

	src <- RawEvent{Kind: RawSwitchDown}
	if c := waitCommit(t, commits); c.Target.ID != "x" {
		t.Errorf("committed %q, want x", c.Target.ID)
	}
}

func TestRunnerLoad(t *testing.T) {
	h, src, commits := startRunner(t, context.Background(), flat(t, "x"))
	defer Stop(h)

	next := flat(t, "n1", "n2")
	if err := h.Load(context.Background(), next, DefaultConfig()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	snap := h.Snapshot()
	if snap.Catalogue != next || snap.State.Epoch != next.Epoch() {
		t.Errorf("snapshot epoch = %d, want %d", snap.State.Epoch, next.Epoch())
	}

	src <- RawEvent{Kind: RawSwitchDown}
	if c := waitCommit(t, commits); c.Target.ID != "n1" {
		t.Errorf("committed %q, want n1", c.Target.ID)
	}
}

func TestRunnerStop(t *testing.T) {
	h, _, _ := startRunner(t, context.Background(), groupsAB(t))
	Stop(h)
	h.Stop()

	select {
	case <-h.Done():
	default:
		t.Fatal("Done() not closed after Stop")
	}
	snap := h.Snapshot()
	if snap.Catalogue != nil || snap.State.Phase != PhaseIdle {
		t.Errorf("after Stop: catalogue %v phase %v", snap.Catalogue, snap.State.Phase)
	}
	if err := h.Load(context.Background(), flat(t, "x"), DefaultConfig()); !errors.Is(err, ErrStopped) {
		t.Errorf("Load() after Stop error = %v, want ErrStopped", err)
	}
}

func TestRunnerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, _, _ := startRunner(t, ctx, groupsAB(t))
	cancel()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on context cancel")
	}
}

func TestRunnerScansOnRealTimer(t *testing.T) {
	src := make(ChanSource)
	steps := make(chan Snapshot, 64)
	cfg := DefaultConfig()
	cfg.Interval = 20 * time.Millisecond

	h, err := Start(context.Background(), src, flat(t, "x", "y"), cfg, WithStepHandler(func(s Snapshot) {
		select {
		case steps <- s:
		default:
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer Stop(h)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-steps:
			if len(s.State.ActivePath) == 1 && s.State.ActivePath[0] == 1 {
				return
			}
		case <-deadline:
			t.Fatal("scan never advanced to the second target")
		}
	}
}

func TestStartRequiresSource(t *testing.T) {
	if _, err := Start(context.Background(), nil, nil, DefaultConfig()); !errors.Is(err, ErrNilSource) {
		t.Errorf("Start(nil source) error = %v, want ErrNilSource", err)
	}
}
