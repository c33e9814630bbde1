package authz

const (
	PermUsersManage        = "users:manage"
	PermAdminsManage       = "admins:manage"
	PermCardsManage        = "cards:manage"
	PermDepositsManage     = "deposits:manage"
	PermLoansManage        = "loans:manage"
	PermTransactionsView   = "transactions:view"
	PermRBACManage         = "rbac:manage"
	PermNotificationsWatch = "notifications:watch"
)

// Permission describes a fine-grained capability known to the console.
type Permission struct {
	Key         string
	Description string
}

var KnownPermissions = []Permission{
	{Key: PermUsersManage, Description: "Manage customer accounts"},
	{Key: PermAdminsManage, Description: "Manage administrator accounts"},
	{Key: PermCardsManage, Description: "Manage issued cards"},
	{Key: PermDepositsManage, Description: "Manage deposit products"},
	{Key: PermLoansManage, Description: "Manage loan applications"},
	{Key: PermTransactionsView, Description: "View transaction history"},
	{Key: PermRBACManage, Description: "Manage roles and permissions"},
	{Key: PermNotificationsWatch, Description: "Subscribe to live back-office notifications"},
}
