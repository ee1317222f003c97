package actions

import (
	"context"
	"slices"
	"strings"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/inflight"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/optimistic"
	"github.com/matheus3301/chatline/internal/state"
)

const maxGroupName = 50

// CreateGroup creates a group with the user as its admin.
func (a *Actions) CreateGroup(ctx context.Context, in api.GroupInput) (model.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return model.Group{}, a.invalid("name", "Group name is required")
	}
	if len(in.Name) > maxGroupName {
		return model.Group{}, a.invalid("name", "Group name is too long")
	}
	in.MemberIDs = slices.DeleteFunc(slices.Clone(in.MemberIDs), func(id string) bool { return id == a.me() })

	a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.Creating = true })
	defer a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.Creating = false })

	g, err := optimistic.Run(ctx, a.runner, optimistic.Command[model.Group]{
		Name: "create-group",
		Request: func(ctx context.Context) (model.Group, error) {
			return a.api.CreateGroup(ctx, in)
		},
		Reconcile: func(g model.Group) { a.stores.Groups.Upsert(g) },
	})
	if err != nil {
		a.fail(err, "Failed to create group")
		return model.Group{}, err
	}
	a.stores.Toasts.Success("Group created")
	return g, nil
}

// UpdateGroup changes the name, description or image of a group. Empty
// fields are left as they are.
func (a *Actions) UpdateGroup(ctx context.Context, id string, in api.GroupInput) (model.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.MemberIDs = nil
	if in.Name == "" && in.Description == "" && in.Image == "" {
		return model.Group{}, a.invalid("name", "Nothing to update")
	}
	if len(in.Name) > maxGroupName {
		return model.Group{}, a.invalid("name", "Group name is too long")
	}
	if in.Image != "" {
		if n, err := imageSize(in.Image); err != nil || n > a.settings.MaxImageBytes {
			return model.Group{}, a.invalid("image", "Image must be smaller than "+formatBytes(a.settings.MaxImageBytes))
		}
	}
	if _, err := a.adminOf(id); err != nil {
		return model.Group{}, err
	}

	a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.UpdatingGroup = true })
	defer a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.UpdatingGroup = false })

	g, err := optimistic.Run(ctx, a.runner, optimistic.Command[model.Group]{
		Name: "update-group",
		Apply: func() func() {
			return a.mutateGroup(id, func(g *model.Group) bool {
				if in.Name != "" {
					g.Name = in.Name
				}
				if in.Description != "" {
					g.Description = in.Description
				}
				if in.Image != "" {
					g.Image = in.Image
				}
				return true
			})
		},
		Request: func(ctx context.Context) (model.Group, error) {
			return a.api.UpdateGroup(ctx, id, in)
		},
		Reconcile: func(g model.Group) { a.stores.Groups.Upsert(g) },
	})
	if err != nil {
		a.fail(err, "Failed to update group")
		return model.Group{}, err
	}
	a.emit(ctx, model.GroupUpdated{Group: g})
	a.stores.Toasts.Success("Group updated")
	return g, nil
}

// AddMembers adds users to a group. Users already in it are skipped.
func (a *Actions) AddMembers(ctx context.Context, groupID string, userIDs []string) (model.Group, error) {
	g, err := a.adminOf(groupID)
	if err != nil {
		return model.Group{}, err
	}
	var fresh []string
	for _, id := range userIDs {
		if id != "" && !g.HasMember(id) && !slices.Contains(fresh, id) {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return model.Group{}, a.invalid("members", "Select at least one new member")
	}

	a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.AddingMembers = true })
	defer a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.AddingMembers = false })

	g, err = optimistic.Run(ctx, a.runner, optimistic.Command[model.Group]{
		Name: "add-members",
		Apply: func() func() {
			prior, _ := a.stores.Groups.Group(groupID)
			a.stores.Groups.AddMembers(groupID, fresh)
			return func() { a.restoreGroup(prior) }
		},
		Request: func(ctx context.Context) (model.Group, error) {
			return a.api.AddMembers(ctx, groupID, fresh)
		},
		Reconcile: func(g model.Group) { a.stores.Groups.Upsert(g) },
	})
	if err != nil {
		a.fail(err, "Failed to add members")
		return model.Group{}, err
	}
	a.emit(ctx, model.MemberAdded{GroupID: groupID, MemberIDs: fresh, Group: &g})
	a.stores.Toasts.Success("Added " + plural(len(fresh), "member"))
	return g, nil
}

// RemoveMember removes a user from a group. A second call for the same
// member while the first is outstanding waits for it and shares its result
// instead of sending another request.
func (a *Actions) RemoveMember(ctx context.Context, groupID, userID string) error {
	key := inflight.MemberKey(inflight.OpRemoveMember, groupID, userID)
	if !a.guard.Busy(key) {
		g, err := a.adminOf(groupID)
		if err != nil {
			return err
		}
		if userID == a.me() {
			return a.invalid("userId", "Leave the group instead of removing yourself")
		}
		if !g.HasMember(userID) {
			return a.invalid("userId", "User is not a member of this group")
		}
	}

	_, shared, err := a.guard.Do(ctx, key, func() (any, error) {
		return optimistic.Run(ctx, a.runner, optimistic.Command[model.Group]{
			Name: inflight.OpRemoveMember,
			Apply: func() func() {
				prior, _ := a.stores.Groups.Group(groupID)
				a.stores.Groups.RemoveMember(groupID, userID)
				return func() { a.restoreGroup(prior) }
			},
			Request: func(ctx context.Context) (model.Group, error) {
				return a.api.RemoveMember(ctx, groupID, userID)
			},
			Reconcile: func(g model.Group) { a.stores.Groups.Upsert(g) },
		})
	})
	if shared {
		return err
	}
	if err != nil {
		a.fail(err, "Failed to remove member")
		return err
	}
	a.emit(ctx, model.MemberRemoved{GroupID: groupID, MemberID: userID})
	a.stores.Toasts.Success("Member removed")
	return nil
}

// PromoteAdmin makes a member an admin. Duplicate calls share one request
// the same way RemoveMember does.
func (a *Actions) PromoteAdmin(ctx context.Context, groupID, userID string) error {
	key := inflight.MemberKey(inflight.OpPromoteAdmin, groupID, userID)
	if !a.guard.Busy(key) {
		g, err := a.adminOf(groupID)
		if err != nil {
			return err
		}
		if !g.HasMember(userID) {
			return a.invalid("userId", "User is not a member of this group")
		}
		if g.IsAdmin(userID) {
			return a.invalid("userId", "User is already an admin")
		}
	}

	_, shared, err := a.guard.Do(ctx, key, func() (any, error) {
		return optimistic.Run(ctx, a.runner, optimistic.Command[model.Group]{
			Name: inflight.OpPromoteAdmin,
			Apply: func() func() {
				prior, _ := a.stores.Groups.Group(groupID)
				a.stores.Groups.Promote(groupID, userID)
				return func() { a.restoreGroup(prior) }
			},
			Request: func(ctx context.Context) (model.Group, error) {
				return a.api.PromoteAdmin(ctx, groupID, userID)
			},
			Reconcile: func(g model.Group) { a.stores.Groups.Upsert(g) },
		})
	})
	if shared {
		return err
	}
	if err != nil {
		a.fail(err, "Failed to promote member")
		return err
	}
	a.emit(ctx, model.MemberPromoted{GroupID: groupID, MemberID: userID})
	a.stores.Toasts.Success("Member promoted to admin")
	return nil
}

// LeaveGroup removes the user from a group and drops it locally.
func (a *Actions) LeaveGroup(ctx context.Context, groupID string) error {
	prior, ok := a.stores.Groups.Group(groupID)
	if !ok {
		a.fail(ErrNotFound, "Group not found")
		return ErrNotFound
	}
	me := a.me()

	_, err := optimistic.Run(ctx, a.runner, optimistic.Command[struct{}]{
		Name: "leave-group",
		Apply: func() func() {
			sel := a.stores.Selection.Snapshot()
			wasActive := sel.Active != nil && sel.Active.Ref() == prior.Ref()
			timeline, wasOpen := a.stores.Groups.OpenTimeline(groupID)

			a.stores.Groups.Remove(groupID)
			if wasActive {
				a.stores.Selection.Close()
			}
			return func() {
				a.stores.Groups.Put(prior)
				if wasOpen {
					a.stores.Groups.Reopen(groupID, timeline)
				}
				if wasActive {
					a.stores.Selection.Restore(sel)
				}
			}
		},
		Request: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.api.LeaveGroup(ctx, groupID)
		},
	})
	if err != nil {
		a.fail(err, "Failed to leave group")
		return err
	}
	a.emit(ctx, model.MemberRemoved{GroupID: groupID, MemberID: me})
	a.stores.Toasts.Success("You left " + prior.Name)
	return nil
}

// adminOf returns the group when the user administers it.
func (a *Actions) adminOf(groupID string) (model.Group, error) {
	g, ok := a.stores.Groups.Group(groupID)
	if !ok {
		a.fail(ErrNotFound, "Group not found")
		return model.Group{}, ErrNotFound
	}
	if !g.IsAdmin(a.me()) {
		return model.Group{}, a.invalid("group", "Only admins can manage this group")
	}
	return g, nil
}

// mutateGroup applies fn and returns the function restoring the prior copy.
func (a *Actions) mutateGroup(id string, fn func(*model.Group) bool) func() {
	prior, _ := a.stores.Groups.Group(id)
	a.stores.Groups.Update(id, fn)
	return func() { a.restoreGroup(prior) }
}

// restoreGroup puts prior back unless a newer server copy arrived since.
func (a *Actions) restoreGroup(prior model.Group) {
	if prior.ID == "" {
		return
	}
	a.stores.Groups.Update(prior.ID, func(g *model.Group) bool {
		if g.Revision() != prior.Revision() {
			return false
		}
		*g = prior.Clone()
		return true
	})
}
