package clients

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// BookingInterval is the privacy-reduced projection of a booking the
// availability computation works from.
type BookingInterval struct {
	BookingID uuid.UUID `json:"booking_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

type BookingClient struct {
	http *resty.Client
}

func NewBookingClient(baseURL string) *BookingClient {
	return &BookingClient{http: newRestyClient(baseURL)}
}

// ResourceWindow lists active bookings of one resource overlapping
// [from, to).
func (c *BookingClient) ResourceWindow(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]BookingInterval, error) {
	var intervals []BookingInterval
	resp, err := authorized(ctx, c.http).
		SetQueryParam("from", from.UTC().Format(time.RFC3339)).
		SetQueryParam("to", to.UTC().Format(time.RFC3339)).
		SetResult(&intervals).
		Get("/bookings/resource/" + resourceID.String() + "/window")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return intervals, nil
}
