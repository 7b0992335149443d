package audit

// Action is the kind of mutation an event records. New kinds are added here,
// never passed in as free text.
type Action string

const (
	ActionProjectCreate       Action = "project_create"
	ActionProjectUpdate       Action = "project_update"
	ActionProjectDelete       Action = "project_delete"
	ActionProjectStatusChange Action = "project_status_change"

	ActionTaskCreate Action = "task_create"
	ActionTaskUpdate Action = "task_update"
	ActionTaskDelete Action = "task_delete"

	ActionMemberAdd    Action = "member_add"
	ActionMemberUpdate Action = "member_update"
	ActionMemberRemove Action = "member_remove"

	ActionFinanceUpdate  Action = "finance_update"
	ActionCostItemCreate Action = "cost_item_create"
	ActionCostItemDelete Action = "cost_item_delete"

	ActionWorkHourUpdate Action = "workhour_update"
	ActionReportUpdate   Action = "report_update"

	ActionRoleUpdate     Action = "role_update"
	ActionUserRoleChange Action = "user_role_change"
)

var actions = map[Action]struct{}{
	ActionProjectCreate:       {},
	ActionProjectUpdate:       {},
	ActionProjectDelete:       {},
	ActionProjectStatusChange: {},
	ActionTaskCreate:          {},
	ActionTaskUpdate:          {},
	ActionTaskDelete:          {},
	ActionMemberAdd:           {},
	ActionMemberUpdate:        {},
	ActionMemberRemove:        {},
	ActionFinanceUpdate:       {},
	ActionCostItemCreate:      {},
	ActionCostItemDelete:      {},
	ActionWorkHourUpdate:      {},
	ActionReportUpdate:        {},
	ActionRoleUpdate:          {},
	ActionUserRoleChange:      {},
}

func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

type EntityType string

const (
	EntityProject  EntityType = "project"
	EntityTask     EntityType = "task"
	EntityMember   EntityType = "member"
	EntityFinance  EntityType = "finance"
	EntityCostItem EntityType = "cost_item"
	EntityWorkHour EntityType = "workhour"
	EntityReport   EntityType = "report"
	EntityRole     EntityType = "role"
	EntityUser     EntityType = "user"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityProject, EntityTask, EntityMember, EntityFinance, EntityCostItem,
		EntityWorkHour, EntityReport, EntityRole, EntityUser:
		return true
	}
	return false
}
