// Package service implements the booking bounded context: the
// admission engine, recurrence expansion, the booking lifecycle, and
// the cascade reactions that keep bookings consistent with deleted
// resources, users and tenants.
//
// Use cases implemented:
//   - Create: admit one booking or a recurrence group, all or nothing
//   - Get / List (non-privileged callers see only their own bookings)
//   - Update: notes and administrative changes in place; time or
//     resource moves re-run the full admission pipeline
//   - Cancel: guarded by the tenant's cancellation window
//   - ChangeStatus: validated state-machine transition
//   - Delete: administrative hard removal, no events
//   - ResourceWindow: occupied intervals for the availability
//     projection, stripped of holder identity
//   - HandleDeletionEvent: resource.deleted and user.deleted cancel
//     active bookings in bulk, tenant.deleted removes rows outright
//
// Dependencies:
//   - Repository: persistence; the conflict probe, the inserts and the
//     staged events of one admission commit in a single serializable
//     transaction
//   - clients.ResourceClient: schedule and status of the target
//     resource
//   - clients.SettingsProvider: the tenant policy every gate reads
//   - clients.UserClient: can_book and can_view_all_bookings lookups
//
// Business rules:
//   - policy gates run in a fixed order and the first failure wins
//   - unreachable policy refuses admission; there are no fallback
//     defaults to admit against
//   - a conflict never persists anything and reports every blocking
//     booking
package service
