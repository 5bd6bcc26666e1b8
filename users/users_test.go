package users_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-cooking-client/users"
	"github.com/stretchr/testify/require"
)

func TestUser_DisplayName(t *testing.T) {
	t.Run("nickname wins", func(t *testing.T) {
		u := &users.User{ID: 1, Username: "admin", Nickname: "Chef"}
		require.Equal(t, "Chef", u.DisplayName())
	})

	t.Run("blank nickname falls back", func(t *testing.T) {
		u := &users.User{ID: 1, Username: "admin", Nickname: "  "}
		require.Equal(t, "admin", u.DisplayName())
	})

	t.Run("nil user", func(t *testing.T) {
		var u *users.User
		require.Equal(t, "", u.DisplayName())
	})
}

func TestPermissionInfo_Decode(t *testing.T) {
	raw := `{"user":{"id":1,"username":"admin","nickname":"Chef"},
		"permissions":["cooking:recipe:query"],"roles":["super_admin"],
		"menus":[{"id":10,"parentId":0,"name":"Recipes","children":[{"id":11,"parentId":10,"name":"List"}]}]}`

	var info users.PermissionInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &info))
	require.NotNil(t, info.User)
	require.Equal(t, int64(1), info.User.ID)
	require.True(t, info.HasRole("super_admin"))
	require.False(t, info.HasRole("member"))
	require.True(t, info.HasPermission("cooking:recipe:query"))
	require.False(t, info.HasPermission("cooking:recipe:delete"))
	require.Len(t, info.Menus[0].Children, 1)
}

func TestPermissionInfo_Wildcard(t *testing.T) {
	info := &users.PermissionInfo{Permissions: []string{"*:*:*"}}
	require.True(t, info.HasPermission("anything:at:all"))

	var missing *users.PermissionInfo
	require.False(t, missing.HasPermission("x"))
}
