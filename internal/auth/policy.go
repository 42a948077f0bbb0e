package auth

import (
	"sort"

	"github.com/irma-project/irma-backend/internal/apperr"
)

// Operation names an action guarded by the policy table.
type Operation string

const (
	OpTimesheetCreate  Operation = "timesheet.create"
	OpTimesheetRead    Operation = "timesheet.read"
	OpTimesheetEdit    Operation = "timesheet.edit"
	OpTimesheetSubmit  Operation = "timesheet.submit"
	OpTimesheetApprove Operation = "timesheet.approve"
	OpApprovalQueue    Operation = "approval.queue"

	OpProjectRead  Operation = "project.read"
	OpProjectWrite Operation = "project.write"
	OpClientRead   Operation = "client.read"
	OpClientWrite  Operation = "client.write"

	OpInvoiceRead  Operation = "invoice.read"
	OpInvoiceWrite Operation = "invoice.write"
	OpReportRead   Operation = "report.read"

	OpUserRead   Operation = "user.read"
	OpUserUpdate Operation = "user.update"
	OpUserAdmin  Operation = "user.admin"
)

// Grant is what a role may do with an operation.
type Grant int

const (
	// Deny is the zero value: anything missing from the table is refused.
	Deny Grant = iota
	// Own allows the operation only on resources the caller owns.
	Own
	Allow
)

var policy = map[Role]map[Operation]Grant{
	RoleEmployee: {
		OpTimesheetCreate: Allow,
		OpTimesheetRead:   Own,
		OpTimesheetEdit:   Own,
		OpTimesheetSubmit: Own,
		OpProjectRead:     Own,
		OpClientRead:      Own,
		OpUserRead:        Own,
		OpUserUpdate:      Own,
	},
	RoleSupervisor: {
		OpTimesheetCreate:  Allow,
		OpTimesheetRead:    Allow,
		OpTimesheetEdit:    Own,
		OpTimesheetSubmit:  Own,
		OpTimesheetApprove: Allow,
		OpApprovalQueue:    Allow,
		OpProjectRead:      Own,
		OpClientRead:       Own,
		OpUserRead:         Own,
		OpUserUpdate:       Own,
	},
	RoleManager: {
		OpTimesheetCreate:  Allow,
		OpTimesheetRead:    Allow,
		OpTimesheetEdit:    Own,
		OpTimesheetSubmit:  Own,
		OpTimesheetApprove: Allow,
		OpApprovalQueue:    Allow,
		OpProjectRead:      Allow,
		OpProjectWrite:     Allow,
		OpClientRead:       Allow,
		OpClientWrite:      Allow,
		OpInvoiceRead:      Allow,
		OpInvoiceWrite:     Allow,
		OpReportRead:       Allow,
		OpUserRead:         Allow,
		OpUserUpdate:       Own,
	},
	RoleAdmin: {
		OpTimesheetCreate:  Allow,
		OpTimesheetRead:    Allow,
		OpTimesheetEdit:    Allow,
		OpTimesheetSubmit:  Own,
		OpTimesheetApprove: Allow,
		OpApprovalQueue:    Allow,
		OpProjectRead:      Allow,
		OpProjectWrite:     Allow,
		OpClientRead:       Allow,
		OpClientWrite:      Allow,
		OpInvoiceRead:      Allow,
		OpInvoiceWrite:     Allow,
		OpReportRead:       Allow,
		OpUserRead:         Allow,
		OpUserUpdate:       Allow,
		OpUserAdmin:        Allow,
	},
}

var deniedMessages = map[Operation]string{
	OpTimesheetCreate:  "Not authorized to create timesheets",
	OpTimesheetRead:    "Not authorized to view this timesheet",
	OpTimesheetEdit:    "Not authorized to update this timesheet",
	OpTimesheetSubmit:  "Not authorized to submit this timesheet",
	OpTimesheetApprove: "Not authorized to approve timesheets",
	OpApprovalQueue:    "Not authorized to manage approvals",
	OpProjectRead:      "Not authorized to view this project",
	OpProjectWrite:     "Not authorized to manage projects",
	OpClientRead:       "Not authorized to view this client",
	OpClientWrite:      "Not authorized to manage clients",
	OpInvoiceRead:      "Not authorized to view invoices",
	OpInvoiceWrite:     "Not authorized to manage invoices",
	OpReportRead:       "Not authorized to view reports",
	OpUserRead:         "Not authorized to view this user",
	OpUserUpdate:       "Not authorized to update this user",
	OpUserAdmin:        "Not authorized to manage users",
}

// GrantFor looks up the table entry for (p.Role, op).
func GrantFor(p Principal, op Operation) Grant {
	return policy[p.Role][op]
}

// Can reports whether p may perform op on some resource, owned or not.
func Can(p Principal, op Operation) bool {
	return GrantFor(p, op) != Deny
}

// Authorize is the central guard. ownerID is the owner of the target resource,
// or "" when the operation has no single owner.
func Authorize(p Principal, op Operation, ownerID string) error {
	switch GrantFor(p, op) {
	case Allow:
		return nil
	case Own:
		if ownerID != "" && ownerID == p.ID {
			return nil
		}
	}
	return Denied(op)
}

// Denied builds the authorization error for op.
func Denied(op Operation) error {
	msg, ok := deniedMessages[op]
	if !ok {
		msg = "Not authorized"
	}
	return apperr.Forbidden(msg)
}

// Operations lists every guarded operation in name order.
func Operations() []Operation {
	ops := make([]Operation, 0, len(deniedMessages))
	for op := range deniedMessages {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

func (g Grant) String() string {
	switch g {
	case Own:
		return "own"
	case Allow:
		return "all"
	}
	return "none"
}
