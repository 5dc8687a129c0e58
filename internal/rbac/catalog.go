package rbac

// rolePermissions is the curated default grant per role. The sets are explicit data and are not
// derived from role levels.
var rolePermissions = map[Role]PermissionSet{
	RoleSuperAdmin: NewPermissionSet(AllPermissions()...),

	RoleTenantOwner: NewPermissionSet(
		PermAuthLogin, PermAuthLogout, PermAuthRefresh,
		PermAuthMFAConfigure, PermAuthMFAVerify, PermAuthSessionManage,

		PermTenantView, PermTenantUpdate, PermTenantManageSubscription,

		PermUserCreate, PermUserView, PermUserUpdate, PermUserDelete,
		PermUserAssignRole, PermUserManagePermissions,

		PermProductCreate, PermProductView, PermProductUpdate, PermProductDelete,
		PermProductManageCategories, PermProductManageVariants,

		PermWarehouseCreate, PermWarehouseView, PermWarehouseUpdate, PermWarehouseDelete,
		PermWarehouseManageLocations,

		PermInventoryView, PermInventoryAdjust, PermInventoryTransfer,
		PermInventorySnapshot, PermInventoryReconcile,

		PermPurchaseCreate, PermPurchaseView, PermPurchaseUpdate, PermPurchaseDelete,
		PermPurchaseApprove, PermPurchaseReceive, PermPurchaseCancel,

		PermSalesCreate, PermSalesView, PermSalesUpdate, PermSalesDelete,
		PermSalesApprove, PermSalesShip, PermSalesCancel,

		PermBillingView, PermBillingManageSubscription, PermBillingViewInvoices, PermBillingDownloadInvoice,

		PermReportViewBasic, PermReportViewFinancial, PermReportViewAnalytics, PermReportExport,
	),

	// No tenant or subscription management.
	RoleAdmin: NewPermissionSet(
		PermAuthLogin, PermAuthLogout, PermAuthRefresh, PermAuthMFAConfigure, PermAuthMFAVerify,

		PermTenantView,

		PermUserCreate, PermUserView, PermUserUpdate, PermUserDelete,

		PermProductCreate, PermProductView, PermProductUpdate, PermProductDelete,
		PermProductManageCategories, PermProductManageVariants,

		PermWarehouseCreate, PermWarehouseView, PermWarehouseUpdate, PermWarehouseManageLocations,

		PermInventoryView, PermInventoryAdjust, PermInventoryTransfer,
		PermInventorySnapshot, PermInventoryReconcile,

		PermPurchaseCreate, PermPurchaseView, PermPurchaseUpdate, PermPurchaseApprove, PermPurchaseReceive,

		PermSalesCreate, PermSalesView, PermSalesUpdate, PermSalesApprove, PermSalesShip, PermSalesCancel,

		PermBillingView, PermBillingViewInvoices, PermBillingDownloadInvoice,

		PermReportViewBasic, PermReportViewFinancial, PermReportViewAnalytics, PermReportExport,
	),

	RoleManager: NewPermissionSet(
		PermAuthLogin, PermAuthLogout, PermAuthRefresh, PermAuthMFAConfigure, PermAuthMFAVerify,

		PermUserView,

		PermProductCreate, PermProductView, PermProductUpdate,
		PermProductManageCategories, PermProductManageVariants,

		PermWarehouseView, PermWarehouseUpdate, PermWarehouseManageLocations,

		PermInventoryView, PermInventoryAdjust, PermInventoryTransfer,

		PermPurchaseCreate, PermPurchaseView, PermPurchaseUpdate, PermPurchaseApprove, PermPurchaseReceive,

		PermSalesCreate, PermSalesView, PermSalesUpdate, PermSalesApprove, PermSalesShip, PermSalesCancel,

		PermReportViewBasic, PermReportViewFinancial, PermReportExport,
	),

	RoleEmployee: NewPermissionSet(
		PermAuthLogin, PermAuthLogout, PermAuthRefresh, PermAuthMFAConfigure, PermAuthMFAVerify,

		PermProductView, PermProductCreate, PermProductUpdate,
		PermWarehouseView,
		PermInventoryView,
		PermPurchaseCreate, PermPurchaseView, PermPurchaseReceive,
		PermSalesCreate, PermSalesView, PermSalesShip,
		PermReportViewBasic,
	),

	// Read-only.
	RoleViewer: NewPermissionSet(
		PermAuthLogin, PermAuthLogout, PermAuthRefresh,
		PermProductView,
		PermWarehouseView,
		PermInventoryView,
		PermPurchaseView,
		PermSalesView,
		PermReportViewBasic,
	),
}

// PermissionsForRole returns a copy of the default permissions of role. Unknown roles yield an
// empty set.
func PermissionsForRole(role Role) PermissionSet {
	return NewPermissionSet().Union(rolePermissions[role])
}

// PermissionsForRoles returns the union of the default permissions of roles.
func PermissionsForRoles(roles ...Role) PermissionSet {
	out := make(PermissionSet)
	for _, r := range roles {
		out.Add(rolePermissionList(r)...)
	}
	return out
}

// RoleHasPermission reports whether perm is part of role's default grant.
func RoleHasPermission(role Role, perm Permission) bool {
	return rolePermissions[role].Has(perm)
}

func rolePermissionList(role Role) []Permission {
	set := rolePermissions[role]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
