// Package service implements the resource bounded context: resource
// categories, the bookable resources inside them, and the availability
// projection that turns a weekly schedule plus tenant policy into
// concrete bookable slots.
//
// Use cases implemented:
//   - Category CRUD (delete refuses while resources remain attached)
//   - Resource CRUD (delete stages resource.deleted so the booking
//     service can cancel what was booked on it)
//   - Availability: project one resource's free slots for one date
//   - HandleBookingEvent / HandleDeletionEvent: availability cache
//     invalidation and tenant cascade cleanup
//
// Dependencies:
//   - ResourceRepository / CategoryRepository: persistence
//   - clients.UserClient: permission lookup for writes, memoized
//   - clients.SettingsProvider: tenant policy for the projection
//   - clients.BookingClient: occupied intervals for the projection
//   - cache.Cache: per-date projection caching
//
// Business rules:
//   - writes require can_manage_resources or an admin caller
//   - availability_schedule must name real weekdays and well-ordered
//     ranges before it persists
//   - only disponivel resources project slots; others project an empty
//     list rather than an error
package service
