package rbac

import (
	"fmt"
	"strings"

	"github.com/stocksaas/stocksaas/internal/shared"
)

// ErrUnknownPermission is returned for codes outside the catalog.
var ErrUnknownPermission = fmt.Errorf("rbac: unknown permission: %w", shared.ErrNotFound)

// Permission is an atomic capability identified by a stable "module:action[:qualifier]" code.
type Permission string

// Authentication.
const (
	PermAuthLogin         Permission = "auth:login"
	PermAuthLogout        Permission = "auth:logout"
	PermAuthRefresh       Permission = "auth:refresh"
	PermAuthMFAConfigure  Permission = "auth:mfa:configure"
	PermAuthMFAVerify     Permission = "auth:mfa:verify"
	PermAuthSessionManage Permission = "auth:session:manage"
)

// Tenant administration.
const (
	PermTenantCreate             Permission = "tenant:create"
	PermTenantView               Permission = "tenant:view"
	PermTenantUpdate             Permission = "tenant:update"
	PermTenantDelete             Permission = "tenant:delete"
	PermTenantManageSubscription Permission = "tenant:subscription:manage"
)

// Users.
const (
	PermUserCreate            Permission = "user:create"
	PermUserView              Permission = "user:view"
	PermUserUpdate            Permission = "user:update"
	PermUserDelete            Permission = "user:delete"
	PermUserAssignRole        Permission = "user:role:assign"
	PermUserManagePermissions Permission = "user:permissions:manage"
)

// Catalog.
const (
	PermProductCreate           Permission = "product:create"
	PermProductView             Permission = "product:view"
	PermProductUpdate           Permission = "product:update"
	PermProductDelete           Permission = "product:delete"
	PermProductManageCategories Permission = "product:category:manage"
	PermProductManageVariants   Permission = "product:variant:manage"
)

// Warehouses and stock.
const (
	PermWarehouseCreate          Permission = "warehouse:create"
	PermWarehouseView            Permission = "warehouse:view"
	PermWarehouseUpdate          Permission = "warehouse:update"
	PermWarehouseDelete          Permission = "warehouse:delete"
	PermWarehouseManageLocations Permission = "warehouse:location:manage"

	PermInventoryView      Permission = "inventory:view"
	PermInventoryAdjust    Permission = "inventory:adjust"
	PermInventoryTransfer  Permission = "inventory:transfer"
	PermInventorySnapshot  Permission = "inventory:snapshot"
	PermInventoryReconcile Permission = "inventory:reconcile"
)

// Purchasing and sales.
const (
	PermPurchaseCreate  Permission = "purchase:create"
	PermPurchaseView    Permission = "purchase:view"
	PermPurchaseUpdate  Permission = "purchase:update"
	PermPurchaseDelete  Permission = "purchase:delete"
	PermPurchaseApprove Permission = "purchase:approve"
	PermPurchaseReceive Permission = "purchase:receive"
	PermPurchaseCancel  Permission = "purchase:cancel"

	PermSalesCreate  Permission = "sales:create"
	PermSalesView    Permission = "sales:view"
	PermSalesUpdate  Permission = "sales:update"
	PermSalesDelete  Permission = "sales:delete"
	PermSalesApprove Permission = "sales:approve"
	PermSalesShip    Permission = "sales:ship"
	PermSalesCancel  Permission = "sales:cancel"
)

// Billing, reporting and platform operations.
const (
	PermBillingView               Permission = "billing:view"
	PermBillingManageSubscription Permission = "billing:subscription:manage"
	PermBillingViewInvoices       Permission = "billing:invoice:view"
	PermBillingDownloadInvoice    Permission = "billing:invoice:download"

	PermReportViewBasic     Permission = "report:view:basic"
	PermReportViewFinancial Permission = "report:view:financial"
	PermReportViewAnalytics Permission = "report:view:analytics"
	PermReportExport        Permission = "report:export"

	PermSystemManage      Permission = "system:manage"
	PermSystemViewLogs    Permission = "system:logs:view"
	PermSystemViewMetrics Permission = "system:metrics:view"
)

type permissionInfo struct {
	code        Permission
	description string
}

// permissionTable is the closed permission set in declaration order.
var permissionTable = []permissionInfo{
	{PermAuthLogin, "Login to the system"},
	{PermAuthLogout, "Logout from the system"},
	{PermAuthRefresh, "Refresh authentication token"},
	{PermAuthMFAConfigure, "Configure MFA"},
	{PermAuthMFAVerify, "Verify MFA code"},
	{PermAuthSessionManage, "Manage user sessions"},

	{PermTenantCreate, "Create new tenant"},
	{PermTenantView, "View tenant information"},
	{PermTenantUpdate, "Update tenant settings"},
	{PermTenantDelete, "Delete tenant"},
	{PermTenantManageSubscription, "Manage tenant subscription"},

	{PermUserCreate, "Create new user"},
	{PermUserView, "View user information"},
	{PermUserUpdate, "Update user information"},
	{PermUserDelete, "Delete user"},
	{PermUserAssignRole, "Assign roles to users"},
	{PermUserManagePermissions, "Manage user permissions"},

	{PermProductCreate, "Create new product"},
	{PermProductView, "View product information"},
	{PermProductUpdate, "Update product information"},
	{PermProductDelete, "Delete product"},
	{PermProductManageCategories, "Manage product categories"},
	{PermProductManageVariants, "Manage product variants"},

	{PermWarehouseCreate, "Create new warehouse"},
	{PermWarehouseView, "View warehouse information"},
	{PermWarehouseUpdate, "Update warehouse information"},
	{PermWarehouseDelete, "Delete warehouse"},
	{PermWarehouseManageLocations, "Manage warehouse locations"},

	{PermInventoryView, "View inventory levels"},
	{PermInventoryAdjust, "Adjust inventory levels"},
	{PermInventoryTransfer, "Transfer inventory between locations"},
	{PermInventorySnapshot, "Create inventory snapshot"},
	{PermInventoryReconcile, "Reconcile inventory"},

	{PermPurchaseCreate, "Create purchase order"},
	{PermPurchaseView, "View purchase orders"},
	{PermPurchaseUpdate, "Update purchase order"},
	{PermPurchaseDelete, "Delete purchase order"},
	{PermPurchaseApprove, "Approve purchase order"},
	{PermPurchaseReceive, "Receive purchased goods"},
	{PermPurchaseCancel, "Cancel purchase order"},

	{PermSalesCreate, "Create sales order"},
	{PermSalesView, "View sales orders"},
	{PermSalesUpdate, "Update sales order"},
	{PermSalesDelete, "Delete sales order"},
	{PermSalesApprove, "Approve sales order"},
	{PermSalesShip, "Ship sales order"},
	{PermSalesCancel, "Cancel sales order"},

	{PermBillingView, "View billing information"},
	{PermBillingManageSubscription, "Manage subscription"},
	{PermBillingViewInvoices, "View invoices"},
	{PermBillingDownloadInvoice, "Download invoice"},

	{PermReportViewBasic, "View basic reports"},
	{PermReportViewFinancial, "View financial reports"},
	{PermReportViewAnalytics, "View advanced analytics"},
	{PermReportExport, "Export reports"},

	{PermSystemManage, "Manage system configuration"},
	{PermSystemViewLogs, "View system logs"},
	{PermSystemViewMetrics, "View system metrics"},
}

var permissionDescriptions = func() map[Permission]string {
	m := make(map[Permission]string, len(permissionTable))
	for _, p := range permissionTable {
		m[p.code] = p.description
	}
	return m
}()

// PermissionByCode resolves a code into a catalog permission.
func PermissionByCode(code string) (Permission, error) {
	p := Permission(strings.TrimSpace(code))
	if _, ok := permissionDescriptions[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, code)
	}
	return p, nil
}

// Valid reports whether p belongs to the catalog.
func (p Permission) Valid() bool {
	_, ok := permissionDescriptions[p]
	return ok
}

// Description returns the human readable description, or "" for unknown codes.
func (p Permission) Description() string {
	return permissionDescriptions[p]
}

func (p Permission) String() string { return string(p) }

// Module returns the leading segment of the code, e.g. "warehouse".
func (p Permission) Module() string {
	module, _, _ := strings.Cut(string(p), ":")
	return module
}

// AllPermissions lists the catalog in declaration order.
func AllPermissions() []Permission {
	out := make([]Permission, 0, len(permissionTable))
	for _, p := range permissionTable {
		out = append(out, p.code)
	}
	return out
}
