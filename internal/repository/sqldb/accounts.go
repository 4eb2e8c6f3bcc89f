package sqldb

import (
	"context"
	"fmt"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

const userSelect = "SELECT id, username, password_hash, is_staff, is_active FROM users"

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &u.IsActive)
	return u, err
}

// GetUser loads a user with its group memberships.
func (q *queries) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(q.queryRow(ctx, userSelect+" WHERE id = ?", id))
	if err != nil {
		return models.User{}, storageErr(fmt.Sprintf("get user %d", id), err)
	}
	return q.withGroups(ctx, u)
}

// FindUserByUsername looks a user up by exact username.
func (q *queries) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(q.queryRow(ctx, userSelect+" WHERE username = ?", username))
	if err != nil {
		return models.User{}, storageErr(fmt.Sprintf("find user %q", username), err)
	}
	return q.withGroups(ctx, u)
}

func (q *queries) withGroups(ctx context.Context, u models.User) (models.User, error) {
	memberships, err := q.memberships(ctx, "WHERE user_id = ?", u.ID)
	if err != nil {
		return models.User{}, err
	}
	u.GroupIDs = memberships[u.ID]
	if u.GroupIDs == nil {
		u.GroupIDs = []int64{}
	}
	return u, nil
}

func (q *queries) memberships(ctx context.Context, where string, args ...interface{}) (map[int64][]int64, error) {
	rows, err := q.query(ctx, "SELECT user_id, group_id FROM user_group_members "+where+" ORDER BY user_id, group_id", args...)
	if err != nil {
		return nil, storageErr("list memberships", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var userID, groupID int64
		if err := rows.Scan(&userID, &groupID); err != nil {
			return nil, storageErr("list memberships", err)
		}
		out[userID] = append(out[userID], groupID)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list memberships", err)
	}
	return out, nil
}

// ListUsers returns every user ordered by username.
func (q *queries) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.query(ctx, userSelect+" ORDER BY username")
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageErr("list users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list users", err)
	}
	rows.Close()

	memberships, err := q.memberships(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].GroupIDs = memberships[users[i].ID]
		if users[i].GroupIDs == nil {
			users[i].GroupIDs = []int64{}
		}
	}
	return users, nil
}

// CreateUser inserts a user and its memberships.
func (q *queries) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	id, err := q.insertID(ctx, "INSERT INTO users (username, password_hash, is_staff, is_active) VALUES (?, ?, ?, ?)",
		user.Username, user.PasswordHash, user.IsStaff, user.IsActive)
	if err != nil {
		return models.User{}, storageErr("insert user", err)
	}
	user.ID = id
	if err := q.setMemberships(ctx, id, user.GroupIDs); err != nil {
		return models.User{}, err
	}
	if user.GroupIDs == nil {
		user.GroupIDs = []int64{}
	}
	return user, nil
}

// UpdateUser overwrites the account fields and memberships of user.ID.
func (q *queries) UpdateUser(ctx context.Context, user models.User) error {
	err := q.execAffecting(ctx, fmt.Sprintf("update user %d", user.ID),
		"UPDATE users SET username = ?, password_hash = ?, is_staff = ?, is_active = ? WHERE id = ?",
		user.Username, user.PasswordHash, user.IsStaff, user.IsActive, user.ID)
	if err != nil {
		return err
	}
	return q.setMemberships(ctx, user.ID, user.GroupIDs)
}

func (q *queries) setMemberships(ctx context.Context, userID int64, groupIDs []int64) error {
	op := fmt.Sprintf("set memberships of user %d", userID)
	if _, err := q.exec(ctx, "DELETE FROM user_group_members WHERE user_id = ?", userID); err != nil {
		return storageErr(op, err)
	}
	seen := make(map[int64]struct{}, len(groupIDs))
	for _, gid := range groupIDs {
		if _, ok := seen[gid]; ok {
			continue
		}
		seen[gid] = struct{}{}
		if _, err := q.exec(ctx, "INSERT INTO user_group_members (user_id, group_id) VALUES (?, ?)", userID, gid); err != nil {
			return storageErr(op, err)
		}
	}
	return nil
}

// DeleteUser removes a user and detaches the audit records it authored.
func (q *queries) DeleteUser(ctx context.Context, id int64) error {
	op := fmt.Sprintf("delete user %d", id)
	if _, err := q.exec(ctx, "UPDATE audit_records SET user_id = NULL WHERE user_id = ?", id); err != nil {
		return storageErr(op, err)
	}
	if _, err := q.exec(ctx, "DELETE FROM user_group_members WHERE user_id = ?", id); err != nil {
		return storageErr(op, err)
	}
	return q.execAffecting(ctx, op, "DELETE FROM users WHERE id = ?", id)
}

// UserCapabilities returns the union of the capabilities of every group of userID.
func (q *queries) UserCapabilities(ctx context.Context, userID int64) ([]models.Capability, error) {
	rows, err := q.query(ctx, `SELECT DISTINCT gc.capability
FROM group_capabilities gc
JOIN user_group_members m ON m.group_id = gc.group_id
WHERE m.user_id = ?
ORDER BY gc.capability`, userID)
	if err != nil {
		return nil, storageErr("user capabilities", err)
	}
	defer rows.Close()

	caps := make([]models.Capability, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, storageErr("user capabilities", err)
		}
		caps = append(caps, models.Capability(c))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("user capabilities", err)
	}
	return caps, nil
}

const groupSelect = `SELECT g.id, g.name, COUNT(m.user_id)
FROM user_groups g
LEFT JOIN user_group_members m ON m.group_id = g.id`

// GetGroup loads a group with its capabilities and member count.
func (q *queries) GetGroup(ctx context.Context, id int64) (models.Group, error) {
	return q.oneGroup(ctx, fmt.Sprintf("get group %d", id), " WHERE g.id = ?", id)
}

// FindGroupByName looks a group up by exact name.
func (q *queries) FindGroupByName(ctx context.Context, name string) (models.Group, error) {
	return q.oneGroup(ctx, fmt.Sprintf("find group %q", name), " WHERE g.name = ?", name)
}

func (q *queries) oneGroup(ctx context.Context, op, where string, arg interface{}) (models.Group, error) {
	var g models.Group
	err := q.queryRow(ctx, groupSelect+where+" GROUP BY g.id, g.name", arg).Scan(&g.ID, &g.Name, &g.MemberCount)
	if err != nil {
		return models.Group{}, storageErr(op, err)
	}
	caps, err := q.groupCapabilities(ctx, "WHERE group_id = ?", g.ID)
	if err != nil {
		return models.Group{}, err
	}
	g.Capabilities = caps[g.ID]
	if g.Capabilities == nil {
		g.Capabilities = []models.Capability{}
	}
	return g, nil
}

func (q *queries) groupCapabilities(ctx context.Context, where string, args ...interface{}) (map[int64][]models.Capability, error) {
	rows, err := q.query(ctx, "SELECT group_id, capability FROM group_capabilities "+where+" ORDER BY group_id, capability", args...)
	if err != nil {
		return nil, storageErr("group capabilities", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.Capability)
	for rows.Next() {
		var (
			gid int64
			c   string
		)
		if err := rows.Scan(&gid, &c); err != nil {
			return nil, storageErr("group capabilities", err)
		}
		out[gid] = append(out[gid], models.Capability(c))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("group capabilities", err)
	}
	return out, nil
}

// ListGroups returns every group ordered by name.
func (q *queries) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := q.query(ctx, groupSelect+" GROUP BY g.id, g.name ORDER BY g.name")
	if err != nil {
		return nil, storageErr("list groups", err)
	}
	defer rows.Close()

	groups := make([]models.Group, 0)
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.MemberCount); err != nil {
			return nil, storageErr("list groups", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list groups", err)
	}
	rows.Close()

	caps, err := q.groupCapabilities(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Capabilities = caps[groups[i].ID]
		if groups[i].Capabilities == nil {
			groups[i].Capabilities = []models.Capability{}
		}
	}
	return groups, nil
}

// CreateGroup inserts an empty group.
func (q *queries) CreateGroup(ctx context.Context, name string) (models.Group, error) {
	id, err := q.insertID(ctx, "INSERT INTO user_groups (name) VALUES (?)", name)
	if err != nil {
		return models.Group{}, storageErr("insert group", err)
	}
	return models.Group{ID: id, Name: name, Capabilities: []models.Capability{}}, nil
}

// RenameGroup changes the name of group id.
func (q *queries) RenameGroup(ctx context.Context, id int64, name string) error {
	return q.execAffecting(ctx, fmt.Sprintf("rename group %d", id), "UPDATE user_groups SET name = ? WHERE id = ?", name, id)
}

// SetGroupCapabilities replaces the capability set of group id.
func (q *queries) SetGroupCapabilities(ctx context.Context, id int64, caps []models.Capability) error {
	op := fmt.Sprintf("set capabilities of group %d", id)
	if _, err := q.exec(ctx, "DELETE FROM group_capabilities WHERE group_id = ?", id); err != nil {
		return storageErr(op, err)
	}
	for _, c := range models.SortCapabilities(caps) {
		if _, err := q.exec(ctx, "INSERT INTO group_capabilities (group_id, capability) VALUES (?, ?)", id, string(c)); err != nil {
			return storageErr(op, err)
		}
	}
	return nil
}

// DeleteGroup removes a group, its capabilities and memberships.
func (q *queries) DeleteGroup(ctx context.Context, id int64) error {
	op := fmt.Sprintf("delete group %d", id)
	for _, stmt := range []string{
		"DELETE FROM user_group_members WHERE group_id = ?",
		"DELETE FROM group_capabilities WHERE group_id = ?",
	} {
		if _, err := q.exec(ctx, stmt, id); err != nil {
			return storageErr(op, err)
		}
	}
	return q.execAffecting(ctx, op, "DELETE FROM user_groups WHERE id = ?", id)
}
