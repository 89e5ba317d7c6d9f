package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-reconciler/internal/model"
	"github.com/iliyamo/booking-reconciler/internal/service"
)

type mockSaver struct {
	mock.Mock
}

func (m *mockSaver) SaveBooking(ctx context.Context, booking model.Booking) (*service.SaveResult, error) {
	args := m.Called(ctx, booking)
	res, _ := args.Get(0).(*service.SaveResult)
	return res, args.Error(1)
}

const bookingBody = `{"booking_number":"BK-1","containers":[{"container_number":"C-1"}],"orders":[{"purchase_number":"PO-1","invoices":[{"invoice_number":"INV-1"}]}]}`

func TestBookingHandlerSave(t *testing.T) {
	saved := &model.Booking{ID: 1, BookingNumber: "BK-1", UserID: 3}

	tests := map[string]struct {
		body       string
		result     *service.SaveResult
		err        error
		wantStatus int
		wantBody   map[string]any
		wantLog    string
		noCall     bool
	}{
		"completed": {
			body: bookingBody,
			result: &service.SaveResult{
				Status:      service.StatusCompleted,
				Booking:     saved,
				Association: &service.AssociationResult{Outcome: service.AssociationFanOut, Created: 1},
			},
			wantStatus: http.StatusCreated,
			wantBody:   map[string]any{"status": "completed"},
		},
		"deferred": {
			body: bookingBody,
			result: &service.SaveResult{
				Status:   service.StatusDeferred,
				Deferred: &service.DeferredAccepted{BookingNumber: "BK-1", MessageID: "m-1"},
			},
			wantStatus: http.StatusAccepted,
			wantBody:   map[string]any{"status": "deferred", "booking_number": "BK-1", "message_id": "m-1"},
		},
		"unauthorized": {
			body:       bookingBody,
			err:        fmt.Errorf("%w: no user", service.ErrUnauthorized),
			wantStatus: http.StatusUnauthorized,
			wantBody:   map[string]any{"error": "unauthorized"},
		},
		"invalid booking": {
			body:       bookingBody,
			err:        fmt.Errorf("%w: booking_number is required", model.ErrInvalidBooking),
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"error": "invalid booking: booking_number is required"},
		},
		"deferral failed": {
			body:       bookingBody,
			err:        fmt.Errorf("%w: broker down", service.ErrDeferralFailed),
			wantStatus: http.StatusServiceUnavailable,
		},
		"unexpected error": {
			body:       bookingBody,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"error": "internal error"},
			wantLog:    `"error":"boom"`,
		},
		"malformed json": {
			body:       `{"booking_number":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"error": "invalid request body"},
			noCall:     true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			saver := &mockSaver{}
			saver.On("SaveBooking", mock.Anything, mock.AnythingOfType("model.Booking")).Return(tc.result, tc.err)
			var logs bytes.Buffer
			h := NewBookingHandler(saver, zerolog.New(&logs))

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/v1/bookings", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			require.NoError(t, h.Save(e.NewContext(req, rec)))
			assert.Equal(t, tc.wantStatus, rec.Code)

			var got map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			for k, v := range tc.wantBody {
				assert.Equal(t, v, got[k], k)
			}
			if tc.wantLog != "" {
				assert.Contains(t, logs.String(), tc.wantLog)
				assert.Contains(t, logs.String(), `"booking_number":"BK-1"`)
			} else {
				assert.Empty(t, logs.String())
			}
			if tc.noCall {
				saver.AssertNotCalled(t, "SaveBooking", mock.Anything, mock.Anything)
				return
			}
			saver.AssertCalled(t, "SaveBooking", mock.Anything, mock.MatchedBy(func(b model.Booking) bool {
				return b.BookingNumber == "BK-1" && len(b.Containers) == 1 && b.Orders[0].Invoices[0].InvoiceNumber == "INV-1"
			}))
		})
	}
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealthAndReady(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	tests := map[string]struct {
		err  error
		want int
	}{
		"database up":   {want: http.StatusOK},
		"database down": {err: errors.New("connection refused"), want: http.StatusServiceUnavailable},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec)
			require.NoError(t, Ready(stubPinger{err: tc.err})(c))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
