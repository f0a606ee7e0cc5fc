// Package service implements the tenant bounded context: the
// organization records that anchor the white-label platform, their
// scheduling settings, and the webhook registry.
//
// Use cases implemented:
//   - Create / Get / GetByDomain / List / Update / Delete of tenants
//   - GetSettings / UpdateSettings (the policy every other service
//     enforces; updates invalidate the shared settings cache)
//   - Webhook registry CRUD per tenant
//   - HandleBookingEvent: fan a consumed booking event out to the
//     tenant's subscribed, active webhooks
//
// Dependencies:
//   - Repository / WebhookRepository: persistence, including the
//     transactional staging of tenant.deleted
//   - cache.Cache: settings invalidation on update and delete
//   - webhook.Sender: best-effort delivery with HMAC signing
//
// Business rules:
//   - domain is unique across all tenants (409 on collision)
//   - settings must validate before they persist; there is no partial
//     acceptance
//   - deleting a tenant stages tenant.deleted with the delete itself;
//     consumers in the other services remove everything the tenant
//     owned
//   - webhook URLs must be https, or http toward localhost
package service
