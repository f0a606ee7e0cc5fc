// Package service implements the user bounded context: per-tenant
// profiles, credentials, permission flags, and login.
//
// Use cases implemented:
//   - Create (open signup; tenant must exist), Get, Me, List, Update,
//     Delete
//   - Login: verify bcrypt credentials and mint the platform JWT
//   - HandleBookingEvent: notification hook for consumed booking
//     events (a log line and a counter; real delivery is out of scope)
//   - HandleDeletionEvent: tenant.deleted removes the tenant's users
//
// Authorization rules:
//   - list is admin-only and pinned to the admin's own tenant
//   - get/update/delete allow the tenant's admin or the user themself
//   - a non-admin cannot touch user_type, permissions, or is_active
//
// Email uniqueness holds per tenant (the same address may exist under
// several tenants), so a login without tenant context is accepted only
// while the address is globally unambiguous.
package service
