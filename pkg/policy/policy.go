// Package policy holds the static operation -> allowed-role-set table.
// Every mutating entry point consults it before touching storage;
// ownership checks stay with the engines, which have the row at hand.
package policy

import "bankcore/pkg/models"

// Operation names an action a caller can attempt.
type Operation string

const (
	OpCreateLoan       Operation = "loan.create"
	OpApproveLoan      Operation = "loan.approve"
	OpRejectLoan       Operation = "loan.reject"
	OpRepayLoan        Operation = "loan.repay"
	OpCreateInvestment Operation = "investment.create"
	OpCancelInvestment Operation = "investment.cancel"
	OpTransfer         Operation = "payment.transfer"
	OpViewAll          Operation = "admin.view_all"
	OpViewStats        Operation = "admin.stats"
	OpManageUsers      Operation = "admin.manage_users"
	OpManageSettings   Operation = "admin.manage_settings"
)

type roleSet map[models.Role]struct{}

func roles(rs ...models.Role) roleSet {
	set := make(roleSet, len(rs))
	for _, r := range rs {
		set[r] = struct{}{}
	}
	return set
}

var everyone = roles(models.RoleUser, models.RoleAdmin, models.RoleMaster, models.RoleMasterAssistant)

// table is the single source of truth for who may do what.
var table = map[Operation]roleSet{
	OpCreateLoan:       everyone,
	OpApproveLoan:      roles(models.RoleAdmin, models.RoleMaster),
	OpRejectLoan:       roles(models.RoleAdmin, models.RoleMaster, models.RoleMasterAssistant),
	OpRepayLoan:        everyone,
	OpCreateInvestment: everyone,
	OpCancelInvestment: everyone,
	OpTransfer:         everyone,
	OpViewAll:          roles(models.RoleAdmin, models.RoleMaster, models.RoleMasterAssistant),
	OpViewStats:        roles(models.RoleAdmin, models.RoleMaster, models.RoleMasterAssistant),
	OpManageUsers:      roles(models.RoleAdmin, models.RoleMaster),
	OpManageSettings:   roles(models.RoleAdmin, models.RoleMaster),
}

// Allowed reports whether role may perform op. Unknown operations and
// unknown roles are denied.
func Allowed(role models.Role, op Operation) bool {
	set, ok := table[op]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

// AdminTier reports whether role can see other users' records.
func AdminTier(role models.Role) bool {
	return Allowed(role, OpViewAll)
}
