package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bridgeRelay/internal/bridge"
	"bridgeRelay/internal/store"
)

func newTestRunner(t *testing.T, ledger *fakeLedger, eventStore store.Store, dispatcher *fakeDispatcher, cfg RunnerConfig) *Runner {
	t.Helper()

	decoder, err := bridge.NewLockDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")
	scanner := NewScanner(ledger, contract, decoder.Topic0())
	processor := NewProcessor(ProcessorConfig{
		ExpectedDestChainID: big.NewInt(destChainID),
		MaxDispatchAttempts: 0,
	}, decoder, eventStore, dispatcher, nil, nil)

	dest := &fakeLedger{chainID: big.NewInt(destChainID)}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = 100
	}
	cfg.RetryBackoff = time.Millisecond

	return NewRunner(cfg, ledger, dest, scanner, processor, eventStore, nil, nil)
}

func seedCursor(t *testing.T, eventStore store.Store, block uint64) {
	t.Helper()
	if err := eventStore.AdvanceCursor(context.Background(), block); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}
}

func TestRunnerProcessesRangeInOrder(t *testing.T) {
	ctx := context.Background()
	logs := []types.Log{
		lockLog(t, "0x03", 11, 0, destChainID, 300),
		lockLog(t, "0x02", 10, 1, destChainID, 200),
		lockLog(t, "0x01", 10, 0, destChainID, 100),
	}
	ledger := &fakeLedger{chainID: big.NewInt(5), latest: 11, logs: logs}
	memStore := store.NewMemoryStore()
	dispatcher := &fakeDispatcher{}
	runner := newTestRunner(t, ledger, memStore, dispatcher, RunnerConfig{})
	seedCursor(t, memStore, 9)

	progressed, err := runner.iterate(ctx)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if !progressed {
		t.Fatalf("expected progress")
	}

	want := []string{
		common.HexToHash("0x01").Hex(),
		common.HexToHash("0x02").Hex(),
		common.HexToHash("0x03").Hex(),
	}
	if len(dispatcher.order) != len(want) {
		t.Fatalf("dispatch count mismatch: %v", dispatcher.order)
	}
	for i, tx := range want {
		if dispatcher.order[i] != tx {
			t.Fatalf("dispatch order mismatch at %d: %v", i, dispatcher.order)
		}
	}

	cursor, _, _ := memStore.Cursor(ctx)
	if cursor != 11 {
		t.Fatalf("cursor should advance to 11, got %d", cursor)
	}
	if memStore.Persists == 0 {
		t.Fatalf("expected a persist after the range")
	}
}

func TestRunnerHoldsCursorOnDispatchFailure(t *testing.T) {
	ctx := context.Background()
	logs := []types.Log{
		lockLog(t, "0x01", 10, 0, destChainID, 100),
		lockLog(t, "0x02", 10, 1, destChainID, 200),
		lockLog(t, "0x03", 11, 0, destChainID, 300),
	}
	ledger := &fakeLedger{chainID: big.NewInt(5), latest: 11, logs: logs}
	memStore := store.NewMemoryStore()
	dispatcher := &fakeDispatcher{failures: map[string]int{common.HexToHash("0x02").Hex(): 1}}
	runner := newTestRunner(t, ledger, memStore, dispatcher, RunnerConfig{})
	seedCursor(t, memStore, 9)

	if _, err := runner.iterate(ctx); !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected ErrDispatch, got %v", err)
	}

	cursor, _, _ := memStore.Cursor(ctx)
	if cursor != 9 {
		t.Fatalf("cursor must not advance past a dispatch-failed range, got %d", cursor)
	}
	if processed, _ := memStore.IsProcessed(ctx, common.HexToHash("0x01").Hex()); !processed {
		t.Fatalf("events before the failure should be committed")
	}
	if processed, _ := memStore.IsProcessed(ctx, common.HexToHash("0x03").Hex()); processed {
		t.Fatalf("events after the failure must not be processed")
	}

	// The retry pass skips committed entries and finishes the range.
	progressed, err := runner.iterate(ctx)
	if err != nil {
		t.Fatalf("retry iterate: %v", err)
	}
	if !progressed {
		t.Fatalf("expected progress on retry")
	}
	want := []string{
		common.HexToHash("0x01").Hex(),
		common.HexToHash("0x02").Hex(),
		common.HexToHash("0x03").Hex(),
	}
	for i, tx := range want {
		if dispatcher.order[i] != tx {
			t.Fatalf("dispatch order mismatch: %v", dispatcher.order)
		}
	}
	if len(dispatcher.order) != 3 {
		t.Fatalf("each event must dispatch exactly once, got %v", dispatcher.order)
	}
	cursor, _, _ = memStore.Cursor(ctx)
	if cursor != 11 {
		t.Fatalf("cursor should advance after retry, got %d", cursor)
	}
}

func TestRunnerInitializeSeedsCursor(t *testing.T) {
	ctx := context.Background()

	ledger := &fakeLedger{chainID: big.NewInt(5), latest: 500}
	memStore := store.NewMemoryStore()
	runner := newTestRunner(t, ledger, memStore, &fakeDispatcher{}, RunnerConfig{})
	if err := runner.initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	cursor, set, _ := memStore.Cursor(ctx)
	if !set || cursor != 500 {
		t.Fatalf("expected cursor seeded to latest 500, got %d set=%v", cursor, set)
	}

	memStore = store.NewMemoryStore()
	runner = newTestRunner(t, ledger, memStore, &fakeDispatcher{}, RunnerConfig{StartBlock: 120})
	if err := runner.initialize(ctx); err != nil {
		t.Fatalf("initialize with start block: %v", err)
	}
	cursor, set, _ = memStore.Cursor(ctx)
	if !set || cursor != 120 {
		t.Fatalf("expected cursor seeded to 120, got %d set=%v", cursor, set)
	}
}

func TestRunnerInitializeFailsFastOnConnection(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{chainIDErr: fmt.Errorf("connection refused")}
	runner := newTestRunner(t, ledger, store.NewMemoryStore(), &fakeDispatcher{}, RunnerConfig{SourceName: "goerli"})

	if err := runner.initialize(ctx); err == nil {
		t.Fatalf("expected connection failure")
	}
}

func TestRunnerConfirmationDepth(t *testing.T) {
	ctx := context.Background()
	logs := []types.Log{
		lockLog(t, "0x01", 10, 0, destChainID, 100),
		lockLog(t, "0x02", 11, 0, destChainID, 200),
	}
	ledger := &fakeLedger{chainID: big.NewInt(5), latest: 12, logs: logs}
	memStore := store.NewMemoryStore()
	dispatcher := &fakeDispatcher{}
	runner := newTestRunner(t, ledger, memStore, dispatcher, RunnerConfig{Confirmations: 2})
	seedCursor(t, memStore, 9)

	if _, err := runner.iterate(ctx); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	if len(dispatcher.order) != 1 || dispatcher.order[0] != common.HexToHash("0x01").Hex() {
		t.Fatalf("only the confirmed block should be processed: %v", dispatcher.order)
	}
	cursor, _, _ := memStore.Cursor(ctx)
	if cursor != 10 {
		t.Fatalf("cursor should stop at confirmed head 10, got %d", cursor)
	}
}

func TestRunnerCrashRecovery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	// First life: T1 committed and persisted, but the cursor still points
	// below its block when the process dies.
	first := store.NewFileStore(path)
	if err := first.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	seedCursor(t, first, 9)
	if err := first.MarkProcessed(ctx, common.HexToHash("0x01").Hex(), time.Now()); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := first.Persist(ctx); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// Second life: the same block is re-scanned, T1 skips, its sibling T2
	// is processed exactly once.
	logs := []types.Log{
		lockLog(t, "0x01", 10, 0, destChainID, 100),
		lockLog(t, "0x02", 10, 1, destChainID, 200),
	}
	ledger := &fakeLedger{chainID: big.NewInt(5), latest: 10, logs: logs}
	restored := store.NewFileStore(path)
	dispatcher := &fakeDispatcher{}
	runner := newTestRunner(t, ledger, restored, dispatcher, RunnerConfig{})
	if err := runner.initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, err := runner.iterate(ctx); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	if len(dispatcher.order) != 1 || dispatcher.order[0] != common.HexToHash("0x02").Hex() {
		t.Fatalf("restart must dispatch only the sibling event: %v", dispatcher.order)
	}
	cursor, _, _ := restored.Cursor(ctx)
	if cursor != 10 {
		t.Fatalf("cursor should advance to 10 after recovery, got %d", cursor)
	}
}

func TestRunnerShrinksRangeCapOnInvalidRange(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{
		chainID:   big.NewInt(5),
		latest:    5000,
		filterErr: fmt.Errorf("query returned more than 10000 results"),
	}
	memStore := store.NewMemoryStore()
	runner := newTestRunner(t, ledger, memStore, &fakeDispatcher{}, RunnerConfig{MaxBlockRange: 1000})
	seedCursor(t, memStore, 0)

	if _, err := runner.iterate(ctx); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if runner.rangeCap != 500 {
		t.Fatalf("range cap should halve to 500, got %d", runner.rangeCap)
	}

	// A successful fetch restores the configured cap.
	ledger.filterErr = nil
	if _, err := runner.iterate(ctx); err != nil {
		t.Fatalf("iterate after recovery: %v", err)
	}
	if runner.rangeCap != 1000 {
		t.Fatalf("range cap should reset to 1000, got %d", runner.rangeCap)
	}
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	ledger := &fakeLedger{chainID: big.NewInt(5), latest: 10}
	memStore := store.NewMemoryStore()
	runner := newTestRunner(t, ledger, memStore, &fakeDispatcher{}, RunnerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop after cancellation")
	}
}
