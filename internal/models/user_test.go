package models

import "testing"

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role UserRole
		cap  Capability
		want bool
	}{
		{RoleAdmin, CapManageUsers, true},
		{RoleAdmin, CapViewAuditLog, true},
		{RoleAdmin, CapTakeExams, false},
		{RoleCreator, CapManageQuizzes, true},
		{RoleCreator, CapManageGroups, true},
		{RoleCreator, CapGradeExams, true},
		{RoleCreator, CapManageUsers, false},
		{RoleCreator, CapTakeExams, false},
		{RoleStudent, CapTakeExams, true},
		{RoleStudent, CapManageQuizzes, false},
		{RoleStudent, CapManageUsers, false},
		{UserRole("owner"), CapManageUsers, false},
	}

	for _, tt := range tests {
		if got := tt.role.Can(tt.cap); got != tt.want {
			t.Errorf("%s.Can(%s) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestUserRoleValid(t *testing.T) {
	for _, role := range []UserRole{RoleAdmin, RoleCreator, RoleStudent} {
		if !role.Valid() {
			t.Errorf("expected %s to be valid", role)
		}
	}
	if UserRole("owner").Valid() {
		t.Error("expected an unknown role to be invalid")
	}
	if UserRole("").Valid() {
		t.Error("expected the empty role to be invalid")
	}
}

func TestSubscriptionPlanValid(t *testing.T) {
	for _, plan := range []SubscriptionPlan{PlanBasic, PlanPro, PlanTeam} {
		if !plan.Valid() {
			t.Errorf("expected %s to be valid", plan)
		}
	}
	if SubscriptionPlan("gold").Valid() {
		t.Error("expected an unknown plan to be invalid")
	}
}
