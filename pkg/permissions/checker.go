// Package permissions checks permission lists against required permissions
// with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "warehouse.*")
//   - "resource.action" - Specific action (e.g., "warehouse.stock.adjust")
package permissions

import (
	"strings"
)

// Warehouse permissions
const (
	WarehouseRead     = "warehouse.read"
	ReceiptWrite      = "warehouse.receipt.write"
	ReceiptApprove    = "warehouse.receipt.approve"
	ReceiptUnapprove  = "warehouse.receipt.unapprove"
	IssuanceWrite     = "warehouse.issuance.write"
	IssuanceApprove   = "warehouse.issuance.approve"
	IssuanceUnapprove = "warehouse.issuance.unapprove"
	StockAdjust       = "warehouse.stock.adjust"
	CatalogWrite      = "warehouse.catalog.write"
	WarehouseAll      = "warehouse.*"
	FullAccess        = "*"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "warehouse.*" matches "warehouse.read", "warehouse.issuance.unapprove", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == FullAccess || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}
