package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
)

type fakeStore struct {
	verifyErr error
	keysErr   error
	insertErr error

	existing map[string]struct{}
	inserted []any
}

func (f *fakeStore) VerifyTable(context.Context, string, []string) error {
	return f.verifyErr
}

func (f *fakeStore) ExistingKeys(context.Context, string, []string) (map[string]struct{}, error) {
	if f.keysErr != nil {
		return nil, f.keysErr
	}
	if f.existing == nil {
		return map[string]struct{}{}, nil
	}
	return f.existing, nil
}

func (f *fakeStore) InsertRows(_ context.Context, _ string, rows any) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, rows)
	return nil
}

func bridgeRow(cve string, product int64) domain.BridgeCveProduct {
	return domain.BridgeCveProduct{CveID: cve, ProductID: product}
}

var bridgeCols = []string{"cve_id", "product_id"}

func TestAppendInsertsOnlyNewKeys(t *testing.T) {
	store := &fakeStore{existing: map[string]struct{}{"CVE-2024-0001|1": {}}}

	rows := []domain.BridgeCveProduct{
		bridgeRow("CVE-2024-0001", 1), // persisted already
		bridgeRow("CVE-2024-0001", 2),
		bridgeRow("CVE-2024-0002", 1),
	}

	res, err := Append(context.Background(), store, domain.TableBridge, bridgeCols, bridgeCols, rows)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, domain.LoadInserted, res.State)

	require.Len(t, store.inserted, 1)
	inserted := store.inserted[0].([]domain.BridgeCveProduct)
	require.Len(t, inserted, 2)
	assert.Equal(t, int64(2), inserted[0].ProductID)
}

func TestAppendDeduplicatesWithinBatchFirstWins(t *testing.T) {
	store := &fakeStore{}

	rows := []domain.BridgeCveProduct{
		bridgeRow("CVE-2024-0003", 5),
		bridgeRow("CVE-2024-0003", 5),
		bridgeRow("CVE-2024-0003", 5),
	}

	res, err := Append(context.Background(), store, domain.TableBridge, bridgeCols, bridgeCols, rows)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
}

func TestAppendReplayIsNoOp(t *testing.T) {
	store := &fakeStore{existing: map[string]struct{}{
		"CVE-2024-0004|1": {},
		"CVE-2024-0004|2": {},
	}}

	rows := []domain.BridgeCveProduct{
		bridgeRow("CVE-2024-0004", 1),
		bridgeRow("CVE-2024-0004", 2),
	}

	res, err := Append(context.Background(), store, domain.TableBridge, bridgeCols, bridgeCols, rows)
	require.NoError(t, err)

	assert.Zero(t, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, store.inserted, "replay must not write")
	assert.Equal(t, domain.LoadInserted, res.State)
}

func TestAppendEmptyBatch(t *testing.T) {
	store := &fakeStore{}

	res, err := Append(context.Background(), store, domain.TableBridge, bridgeCols, bridgeCols,
		[]domain.BridgeCveProduct(nil))
	require.NoError(t, err)

	assert.Zero(t, res.Inserted)
	assert.Equal(t, domain.LoadInserted, res.State)
	assert.Empty(t, store.inserted)
}

func TestAppendSchemaFailureStopsBeforeKeys(t *testing.T) {
	schemaErr := &domain.SchemaMissingError{Table: domain.TableBridge, Object: "product_id"}
	store := &fakeStore{verifyErr: schemaErr}

	res, err := Append(context.Background(), store, domain.TableBridge, bridgeCols, bridgeCols,
		[]domain.BridgeCveProduct{bridgeRow("CVE-2024-0005", 1)})

	require.Error(t, err)
	var missing *domain.SchemaMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "product_id", missing.Object)
	assert.Equal(t, domain.LoadUnvalidated, res.State)
	assert.Empty(t, store.inserted)
}

func TestAppendKeyResolutionFailure(t *testing.T) {
	store := &fakeStore{keysErr: errors.New("query timeout")}

	res, err := Append(context.Background(), store, domain.TableBridge, bridgeCols, bridgeCols,
		[]domain.BridgeCveProduct{bridgeRow("CVE-2024-0006", 1)})

	require.Error(t, err)
	assert.Equal(t, domain.LoadSchemaVerified, res.State)
}

func TestAppendInsertFailureWrapsPersistenceError(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("disk full")}

	res, err := Append(context.Background(), store, domain.TableBridge, bridgeCols, bridgeCols,
		[]domain.BridgeCveProduct{bridgeRow("CVE-2024-0007", 1)})

	require.Error(t, err)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.TableBridge, perr.Table)
	assert.Equal(t, domain.LoadRowsFiltered, res.State)
	assert.Zero(t, res.Inserted)
}
