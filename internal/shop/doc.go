// Package shop provides the domain types shared by the cart, the backend
// client and the checkout flow.
//
// This package contains type definitions only. All other internal packages
// import shop; shop imports nothing internal.
//
// Key design constraints:
//   - Money is always integer minor units (cents), never float64
//   - Identifiers compare by their normalized string form (see ID)
//   - JSON field names follow the backend's camelCase wire format
package shop
