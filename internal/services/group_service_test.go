package services

import (
	"testing"

	"splitledger/internal/pagination"
	"splitledger/internal/testutil"
)

func TestCreateGroup(t *testing.T) {
	t.Run("admin_is_always_a_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		admin := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)

		group, err := svc.CreateGroup(admin.ID, "Flatmates", "Shared apartment", []uint{other.ID})
		testutil.AssertNoError(t, err)

		if group.AdminID == nil || *group.AdminID != admin.ID {
			t.Error("expected creator to be admin")
		}
		if len(group.Members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(group.Members))
		}

		member, err := svc.IsMember(group.ID, admin.ID)
		testutil.AssertNoError(t, err)
		if !member {
			t.Error("expected admin to be a member")
		}
	})

	t.Run("requires_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		admin := testutil.CreateTestUser(t, db)

		_, err := svc.CreateGroup(admin.ID, "", "", nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_member_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		admin := testutil.CreateTestUser(t, db)

		_, err := svc.CreateGroup(admin.ID, "Ghosts", "", []uint{99999})
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestGetUserGroups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewGroupService(db)

	a := testutil.CreateTestUser(t, db)
	b := testutil.CreateTestUser(t, db)

	testutil.CreateTestGroup(t, db, a, b)
	testutil.CreateTestGroup(t, db, a)
	testutil.CreateTestGroup(t, db, b)

	page, err := svc.GetUserGroups(a.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)

	if page.TotalItems != 2 {
		t.Errorf("expected 2 groups for a, got %d", page.TotalItems)
	}
}

func TestGetGroupByID(t *testing.T) {
	t.Run("member_sees_group_with_members", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b)

		got, err := svc.GetGroupByID(b.ID, group.ID)
		testutil.AssertNoError(t, err)
		if len(got.Members) != 2 {
			t.Errorf("expected 2 members, got %d", len(got.Members))
		}
	})

	t.Run("non_member_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		a := testutil.CreateTestUser(t, db)
		outsider := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)

		_, err := svc.GetGroupByID(outsider.ID, group.ID)
		testutil.AssertAppError(t, err, "NOT_GROUP_MEMBER")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		a := testutil.CreateTestUser(t, db)

		_, err := svc.GetGroupByID(a.ID, 99999)
		testutil.AssertAppError(t, err, "GROUP_NOT_FOUND")
	})
}

func TestAddMember(t *testing.T) {
	t.Run("member_adds_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		a := testutil.CreateTestUser(t, db)
		newcomer := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)

		got, err := svc.AddMember(a.ID, group.ID, newcomer.ID)
		testutil.AssertNoError(t, err)
		if len(got.Members) != 2 {
			t.Errorf("expected 2 members, got %d", len(got.Members))
		}
	})

	t.Run("adding_twice_is_a_noop", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b)

		got, err := svc.AddMember(a.ID, group.ID, b.ID)
		testutil.AssertNoError(t, err)
		if len(got.Members) != 2 {
			t.Errorf("expected membership unchanged, got %d members", len(got.Members))
		}
	})

	t.Run("outsider_cannot_add", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)

		a := testutil.CreateTestUser(t, db)
		outsider := testutil.CreateTestUser(t, db)
		newcomer := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)

		_, err := svc.AddMember(outsider.ID, group.ID, newcomer.ID)
		testutil.AssertAppError(t, err, "NOT_GROUP_MEMBER")
	})
}
