package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-reconciler/internal/database"
	"github.com/iliyamo/booking-reconciler/internal/model"
	"github.com/iliyamo/booking-reconciler/internal/repository"
)

var errStorageDown = errors.New("storage down")

func createTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))
	return repository.NewStore(db, database.TxOptions(database.DriverSQLite))
}

// faultyTx fails the named Create call and passes everything else through.
type faultyTx struct {
	repository.Tx
	failOn string
	calls  map[string]int
}

func (f *faultyTx) record(name string) error {
	f.calls[name]++
	if f.failOn == name {
		return errStorageDown
	}
	return nil
}

func (f *faultyTx) CreateBooking(ctx context.Context, b *model.Booking) error {
	if err := f.record("booking"); err != nil {
		return err
	}
	return f.Tx.CreateBooking(ctx, b)
}

func (f *faultyTx) CreateContainer(ctx context.Context, c *model.Container) error {
	if err := f.record("container"); err != nil {
		return err
	}
	return f.Tx.CreateContainer(ctx, c)
}

func (f *faultyTx) CreateOrder(ctx context.Context, o *model.Order) error {
	if err := f.record("order"); err != nil {
		return err
	}
	return f.Tx.CreateOrder(ctx, o)
}

func (f *faultyTx) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	if err := f.record("invoice"); err != nil {
		return err
	}
	return f.Tx.CreateInvoice(ctx, inv)
}

func (f *faultyTx) CreateOrderContainer(ctx context.Context, oc *model.OrderContainer) error {
	if err := f.record("order_container"); err != nil {
		return err
	}
	return f.Tx.CreateOrderContainer(ctx, oc)
}

// faultyStorage runs units of work on a real store through a faultyTx.
// failOn may be changed between calls to simulate recovery.
type faultyStorage struct {
	store  *repository.Store
	failOn string
	units  int
	calls  map[string]int
}

func newFaultyStorage(store *repository.Store, failOn string) *faultyStorage {
	return &faultyStorage{store: store, failOn: failOn, calls: map[string]int{}}
}

func (s *faultyStorage) WithinTx(ctx context.Context, fn func(repository.Tx) error) error {
	s.units++
	return s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return fn(&faultyTx{Tx: tx, failOn: s.failOn, calls: s.calls})
	})
}

// countingStorage records whether any unit of work was started.
type countingStorage struct {
	units int
}

func (s *countingStorage) WithinTx(context.Context, func(repository.Tx) error) error {
	s.units++
	return errors.New("unexpected storage access")
}

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) CurrentUserID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

type mockDeferrer struct {
	mock.Mock
}

func (m *mockDeferrer) DeferBooking(ctx context.Context, userID uint64, booking model.Booking, reason string) (string, error) {
	args := m.Called(ctx, userID, booking, reason)
	return args.String(0), args.Error(1)
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func sampleBooking() model.Booking {
	return model.Booking{
		BookingNumber: "BK-1",
		Containers: []model.Container{
			{ContainerNumber: "C-1"},
			{ContainerNumber: "C-2"},
		},
		Orders: []model.Order{
			{
				PurchaseNumber: "PO-1",
				Invoices:       []model.Invoice{{InvoiceNumber: "INV-1"}},
			},
		},
	}
}
