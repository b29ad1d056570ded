package cache

import (
	"slices"

	"github.com/accordlabs/accord-go/pkg/wire"
)

// PermissionsAll is the permission set granted to guild owners.
const PermissionsAll = ^uint64(0)

// MemberRoles returns the roles a member holds, always including the
// guild's everyone role, sorted by ascending position.
func (c *Cache) MemberRoles(guildID, userID uint64) []wire.Role {
	m, ok := c.members[MemberKey(guildID, userID)]
	if !ok {
		return nil
	}

	roles := make([]wire.Role, 0, len(m.RoleIDs)+1)
	seenDefault := false
	defaultID := DefaultRoleID(guildID)
	for _, id := range m.RoleIDs {
		if r, ok := c.roles[id]; ok {
			roles = append(roles, *r)
			if id == defaultID {
				seenDefault = true
			}
		}
	}
	if !seenDefault {
		if r, ok := c.roles[defaultID]; ok {
			roles = append(roles, *r)
		}
	}
	slices.SortStableFunc(roles, func(a, b wire.Role) int {
		return a.Position - b.Position
	})
	return roles
}

// MemberTopRole returns the member's highest-positioned role, falling
// back to the everyone role.
func (c *Cache) MemberTopRole(guildID, userID uint64) (wire.Role, bool) {
	roles := c.MemberRoles(guildID, userID)
	if len(roles) == 0 {
		if r, ok := c.roles[DefaultRoleID(guildID)]; ok {
			return *r, true
		}
		return wire.Role{}, false
	}
	return roles[len(roles)-1], true
}

// MemberColor returns the color of the member's highest-positioned role
// that defines one.
func (c *Cache) MemberColor(guildID, userID uint64) (uint32, bool) {
	roles := c.MemberRoles(guildID, userID)
	for i := len(roles) - 1; i >= 0; i-- {
		if roles[i].Color != nil {
			return *roles[i].Color, true
		}
	}
	return 0, false
}

// MemberPermissions resolves a member's effective permissions. Owners
// hold every permission. Otherwise role allow sets accumulate in
// position order, then channel overwrites apply on top: role overwrites
// for roles the member holds, then the member's own user overwrite
// last. channelID of zero resolves guild-level permissions only.
func (c *Cache) MemberPermissions(guildID, userID, channelID uint64) uint64 {
	g, ok := c.guilds[guildID]
	if !ok {
		return 0
	}
	if g.OwnerID == userID {
		return PermissionsAll
	}
	m, ok := c.members[MemberKey(guildID, userID)]
	if !ok {
		return 0
	}

	roles := c.MemberRoles(guildID, userID)
	perms := m.Permissions
	for _, r := range roles {
		perms &^= r.Permissions.Deny
		perms |= r.Permissions.Allow
	}
	if channelID == 0 {
		return perms
	}
	ch, ok := c.channels[channelID]
	if !ok {
		return perms
	}

	held := make(map[uint64]struct{}, len(roles))
	for _, r := range roles {
		held[r.ID] = struct{}{}
	}
	for _, ow := range ch.Overwrites {
		if _, ok := held[ow.ID]; ok {
			perms &^= ow.Permissions.Deny
			perms |= ow.Permissions.Allow
		}
	}
	for _, ow := range ch.Overwrites {
		if ow.ID == userID {
			perms &^= ow.Permissions.Deny
			perms |= ow.Permissions.Allow
		}
	}
	return perms
}

// ClientPermissions resolves the logged-in user's permissions.
func (c *Cache) ClientPermissions(guildID, channelID uint64) uint64 {
	return c.MemberPermissions(guildID, c.ClientID(), channelID)
}

// CanManage reports whether the client outranks a member, either by
// owning the guild or by holding a higher top role.
func (c *Cache) CanManage(guildID, userID uint64) bool {
	if g, ok := c.guilds[guildID]; ok && g.OwnerID == c.ClientID() {
		return true
	}
	mine, ok := c.MemberTopRole(guildID, c.ClientID())
	if !ok {
		return false
	}
	theirs, ok := c.MemberTopRole(guildID, userID)
	if !ok {
		return true
	}
	return mine.Position > theirs.Position
}
