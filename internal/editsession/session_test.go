package editsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

func openTestSession(t *testing.T, store *memoryRecordStore, ids []int64, editing int64, opts ...Option) (*Session, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	rec, err := store.Get(context.Background(), editing)
	require.NoError(t, err)
	opts = append([]Option{WithClock(clock), WithQuietWindow(time.Second)}, opts...)
	sess, err := Open(context.Background(), Deps{Records: store}, OpenParams{
		Direction:  rec.Direction,
		AccountID:  rec.AccountID,
		WorkingSet: ids,
		EditingID:  editing,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close(context.Background()) })
	return sess, clock
}

func zeroAmounts(rec invoice.Invoice) invoice.Invoice {
	rec.NetAmount = d(0)
	rec.TaxAmount = d(0)
	rec.TotalAmount = d(0)
	return rec
}

func TestRepeatedSameValueUpdateStaysClean(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, clock := openTestSession(t, store, []int64{5}, 5)
	require.False(t, sess.IsDirty())

	for i := 0; i < 3; i++ {
		_, err := sess.Update(invoice.SetNetAmount(d(1000)))
		require.NoError(t, err)
		require.False(t, sess.IsDirty())
	}
	require.Equal(t, StateIdle, sess.State())
	require.Zero(t, clock.Pending())
}

func TestDebouncedUpdatesCoalesceIntoOneCommit(t *testing.T) {
	store := newMemoryRecordStore(zeroAmounts(testInvoice(5, invoice.VariantTriplicate)))
	sess, clock := openTestSession(t, store, []int64{5}, 5)

	_, err := sess.Update(invoice.SetNetAmount(d(1000)))
	require.NoError(t, err)
	clock.Advance(200 * time.Millisecond)
	_, err = sess.Update(invoice.SetNetAmount(d(1200)))
	require.NoError(t, err)
	clock.Advance(200 * time.Millisecond)
	_, err = sess.Update(invoice.SetNetAmount(d(1500)))
	require.NoError(t, err)
	require.Equal(t, StatePendingCommit, sess.State())

	clock.Advance(999 * time.Millisecond)
	require.Empty(t, store.Saves())

	clock.Advance(time.Millisecond)
	saves := store.Saves()
	require.Len(t, saves, 1)
	require.True(t, saves[0].fields.NetAmount.Equal(d(1500)))
	require.True(t, saves[0].fields.TaxAmount.Equal(d(75)))
	require.False(t, sess.IsDirty())
	require.Equal(t, StateIdle, sess.State())
}

func TestNetAmountDerivesTaxAndTotal(t *testing.T) {
	store := newMemoryRecordStore(zeroAmounts(testInvoice(5, invoice.VariantTriplicate)))
	sess, _ := openTestSession(t, store, []int64{5}, 5)

	rec, err := sess.Update(invoice.SetNetAmount(d(1000)))
	require.NoError(t, err)
	require.True(t, rec.TaxAmount.Equal(d(50)), rec.TaxAmount.String())
	require.True(t, rec.TotalAmount.Equal(d(1050)), rec.TotalAmount.String())
}

func TestZeroRatedVariantPinsTax(t *testing.T) {
	rec := zeroAmounts(testInvoice(5, invoice.VariantZeroRated))
	rec.Direction = invoice.DirectionOutput
	rec.TaxRate = invoice.RateFromInt(10)
	store := newMemoryRecordStore(rec)
	sess, _ := openTestSession(t, store, []int64{5}, 5)

	live, err := sess.Update(invoice.SetNetAmount(d(1000)))
	require.NoError(t, err)
	require.True(t, live.TaxAmount.IsZero())
	require.True(t, live.TotalAmount.Equal(d(1000)))
}

func TestReturnToggleForcesImmediateCommit(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, clock := openTestSession(t, store, []int64{5}, 5)

	rec, err := sess.ToggleReturn(true)
	require.NoError(t, err)
	require.Equal(t, invoice.VariantReturnTriplicate, rec.Variant)
	sess.Wait()

	saves := store.Saves()
	require.Len(t, saves, 1)
	require.Equal(t, invoice.VariantReturnTriplicate, saves[0].fields.Variant)
	require.Zero(t, clock.Pending())
	require.True(t, sess.ReturnToggled())
}

func TestReturnToggleRestoresOriginalVariant(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5}, 5)

	_, err := sess.ToggleReturn(true)
	require.NoError(t, err)
	sess.Wait()
	rec, err := sess.ToggleReturn(false)
	require.NoError(t, err)
	sess.Wait()

	require.Equal(t, invoice.VariantTriplicate, rec.Variant)
	saves := store.Saves()
	require.Len(t, saves, 2)
	require.Equal(t, invoice.VariantTriplicate, saves[1].fields.Variant)
}

func TestReturnToggleOnVariantWithoutPair(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantCustoms))
	sess, _ := openTestSession(t, store, []int64{5}, 5)

	_, err := sess.ToggleReturn(true)
	require.ErrorIs(t, err, ErrNoReturnVariant)
	sess.Wait()
	require.Empty(t, store.Saves())
}

func TestForcedCommitIgnoresValidation(t *testing.T) {
	store := newMemoryRecordStore(zeroAmounts(testInvoice(5, invoice.VariantTriplicate)))
	sess, _ := openTestSession(t, store, []int64{5}, 5)
	require.False(t, sess.Validate().Valid)

	_, err := sess.SelectVariant(invoice.VariantDuplicate)
	require.NoError(t, err)
	sess.Wait()
	require.Len(t, store.Saves(), 1)
}

func TestSelectVariantRejectsOtherDirection(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5}, 5)

	_, err := sess.SelectVariant(invoice.VariantZeroRated)
	require.ErrorIs(t, err, ErrVariantNotAllowed)
}

func TestUpdateRejectsVariantField(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5}, 5)

	_, err := sess.Update(invoice.SetVariant(invoice.VariantDuplicate))
	require.ErrorIs(t, err, ErrVariantNotEditable)
}

func TestNavigationReplacesLiveState(t *testing.T) {
	rec9 := testInvoice(9, invoice.VariantDuplicate)
	rec9.NetAmount = d(2000)
	rec9.TaxAmount = d(100)
	rec9.TotalAmount = d(2100)
	rec9.DocumentNo = invoice.DocumentNo{Prefix: "CD", Suffix: "87654321"}
	rec9.Counterparty = invoice.Counterparty{}
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate), rec9, testInvoice(12, invoice.VariantTriplicate))
	sess, clock := openTestSession(t, store, []int64{5, 9, 12}, 5)

	_, err := sess.Update(invoice.SetNetAmount(d(777)))
	require.NoError(t, err)
	desc := "pending edit"
	_, err = sess.Update(invoice.SetDescription(desc))
	require.NoError(t, err)

	require.NoError(t, sess.GoTo(context.Background(), 9))

	live := sess.Record()
	require.Equal(t, int64(9), live.ID)
	require.Equal(t, rec9.Fields, live.Fields)
	require.Nil(t, live.Description)
	require.True(t, sess.HasPrev())
	require.True(t, sess.HasNext())
	require.False(t, sess.IsDirty())
	require.Zero(t, clock.Pending())

	saves := store.Saves()
	require.Len(t, saves, 1)
	require.Equal(t, int64(5), saves[0].id)
	require.True(t, saves[0].fields.NetAmount.Equal(d(777)))
}

func TestNavigationOutsideWorkingSet(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate), testInvoice(30, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5}, 5)

	require.ErrorIs(t, sess.GoTo(context.Background(), 30), ErrNotInWorkingSet)
	require.ErrorIs(t, sess.Next(context.Background()), ErrNotInWorkingSet)
	require.Equal(t, int64(5), sess.EditingID())
}

func TestPrevAndNextStepThroughWorkingSet(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate), testInvoice(9, invoice.VariantTriplicate), testInvoice(12, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5, 9, 12}, 9)

	require.NoError(t, sess.Next(context.Background()))
	require.Equal(t, int64(12), sess.EditingID())
	require.False(t, sess.HasNext())
	require.NoError(t, sess.Prev(context.Background()))
	require.NoError(t, sess.Prev(context.Background()))
	require.Equal(t, int64(5), sess.EditingID())
	require.False(t, sess.HasPrev())
}

func TestFailedCommitKeepsSnapshotAndDoesNotRetry(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, clock := openTestSession(t, store, []int64{5}, 5)
	store.setReject(true)

	_, err := sess.Update(invoice.SetNetAmount(d(1200)))
	require.NoError(t, err)
	clock.Advance(time.Second)

	require.Len(t, store.Saves(), 1)
	require.ErrorIs(t, sess.LastCommit().Err, ErrCommitRejected)
	snap, ok := sess.Snapshot()
	require.True(t, ok)
	require.True(t, snap.NetAmount.Equal(d(1000)))
	require.Equal(t, StateIdle, sess.State())
	require.Zero(t, clock.Pending())

	clock.Advance(10 * time.Second)
	require.Len(t, store.Saves(), 1)
}

func TestInvalidFieldsSuppressDebouncedCommit(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, clock := openTestSession(t, store, []int64{5}, 5)

	_, err := sess.Update(invoice.SetCounterparty(invoice.Counterparty{}))
	require.NoError(t, err)
	clock.Advance(time.Second)

	require.Empty(t, store.Saves())
	require.True(t, sess.IsDirty())
	result := sess.Validate()
	require.False(t, result.Valid)
	require.Contains(t, result.Errors, invoice.FieldCounterparty)
}

func TestLateCommitDoesNotTouchNextRecord(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate), testInvoice(9, invoice.VariantDuplicate))
	sess, _ := openTestSession(t, store, []int64{5, 9}, 5)
	block := make(chan struct{})
	store.mu.Lock()
	store.block = block
	store.entered = make(chan int64, 1)
	store.mu.Unlock()

	_, err := sess.ToggleReturn(true)
	require.NoError(t, err)
	require.Equal(t, int64(5), <-store.entered)
	require.NoError(t, sess.GoTo(context.Background(), 9))
	close(block)
	sess.Wait()

	snap, ok := sess.Snapshot()
	require.True(t, ok)
	require.Equal(t, invoice.VariantDuplicate, snap.Variant)
	require.False(t, sess.IsDirty())
	require.Equal(t, int64(5), sess.LastCommit().RecordID)
}

func TestOpenSeedsUnsetTaxRate(t *testing.T) {
	rec := testInvoice(5, invoice.VariantTriplicate)
	rec.TaxRate = invoice.TaxRate{}
	store := newMemoryRecordStore(rec)
	settings := &staticSettings{rate: d(5)}
	preview := &recordingPreview{}

	sess, err := Open(context.Background(), Deps{Records: store, Settings: settings, Preview: preview}, OpenParams{
		Direction:  invoice.DirectionInput,
		AccountID:  1,
		WorkingSet: []int64{5},
		EditingID:  5,
	}, WithClock(&manualClock{}))
	require.NoError(t, err)
	defer sess.Close(context.Background())

	require.True(t, sess.Record().TaxRate.Equal(invoice.RateFromInt(5)))
	require.False(t, sess.IsDirty())
	require.Equal(t, 1, settings.calls)
	require.Equal(t, 1, preview.Count())
}

func TestOpenRejectsDirectionMismatch(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	_, err := Open(context.Background(), Deps{Records: store}, OpenParams{
		Direction:  invoice.DirectionOutput,
		WorkingSet: []int64{5},
		EditingID:  5,
	})
	require.ErrorIs(t, err, ErrDirectionMismatch)

	_, err = Open(context.Background(), Deps{Records: store}, OpenParams{
		Direction:  invoice.DirectionInput,
		WorkingSet: []int64{5},
		EditingID:  6,
	})
	require.ErrorIs(t, err, ErrNotInWorkingSet)
}

func TestDeleteRecordMovesToSibling(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate), testInvoice(9, invoice.VariantTriplicate), testInvoice(12, invoice.VariantDuplicate))
	sess, _ := openTestSession(t, store, []int64{5, 9, 12}, 9)

	next, err := sess.DeleteRecord(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12), next)
	require.Equal(t, int64(12), sess.EditingID())
	require.Equal(t, invoice.VariantDuplicate, sess.Record().Variant)
	require.Len(t, sess.WorkingSet(), 2)
	require.True(t, sess.HasPrev())
	require.False(t, sess.HasNext())
}

func TestDeleteRecordRefusesLinked(t *testing.T) {
	rec := testInvoice(5, invoice.VariantTriplicate)
	rec.Linked = true
	store := newMemoryRecordStore(rec, testInvoice(9, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5, 9}, 5)

	_, err := sess.DeleteRecord(context.Background())
	require.ErrorIs(t, err, ErrRecordLinked)
	require.Equal(t, int64(5), sess.EditingID())
}

func TestDeleteLastRecordClosesSession(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5}, 5)

	next, err := sess.DeleteRecord(context.Background())
	require.NoError(t, err)
	require.Zero(t, next)
	_, err = sess.Update(invoice.SetNetAmount(d(10)))
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestCloseFlushesPendingEdit(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, clock := openTestSession(t, store, []int64{5}, 5)

	_, err := sess.Update(invoice.SetTotalAmount(d(2100)))
	require.NoError(t, err)
	require.NoError(t, sess.Close(context.Background()))

	saves := store.Saves()
	require.Len(t, saves, 1)
	require.True(t, saves[0].fields.NetAmount.Equal(d(2000)))
	require.True(t, saves[0].fields.TaxAmount.Equal(d(100)))
	require.Zero(t, clock.Pending())
	require.NoError(t, sess.Close(context.Background()))
}

func TestCommitErrorIsRecorded(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5}, 5)
	store.mu.Lock()
	store.fail = errStoreDown
	store.mu.Unlock()

	_, err := sess.Update(invoice.SetNetAmount(d(3000)))
	require.NoError(t, err)
	require.NoError(t, sess.Close(context.Background()))

	outcome := sess.LastCommit()
	require.ErrorIs(t, outcome.Err, errStoreDown)
	require.Equal(t, CommitFlush, outcome.Kind)
	require.True(t, sess.IsDirty())
}

func TestDeleteRecordClosesWhenSiblingFailsToLoad(t *testing.T) {
	store := newMemoryRecordStore(testInvoice(5, invoice.VariantTriplicate), testInvoice(9, invoice.VariantTriplicate))
	sess, _ := openTestSession(t, store, []int64{5, 9}, 5)
	store.mu.Lock()
	store.getErr[9] = errStoreDown
	store.mu.Unlock()

	_, err := sess.DeleteRecord(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	require.Equal(t, []int64{5}, store.deleted)
	require.ErrorIs(t, sess.GoTo(context.Background(), 9), ErrSessionClosed)
}
