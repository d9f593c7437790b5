package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eloquent "github.com/satishbabariya/eloquent-go"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(&EntityType{
		Name: "User",
		Relations: map[string]Descriptor{
			"posts":   {Kind: HasManyKind, Related: "Post"},
			"profile": {Kind: HasOneKind, Related: "Profile"},
			"roles":   {Kind: BelongsToManyKind, Related: "Role"},
		},
	})
	r.Register(&EntityType{
		Name: "Post",
		Relations: map[string]Descriptor{
			"comments": {Kind: HasManyKind, Related: "Comment"},
			"author":   {Kind: BelongsToKind, Related: "User"},
		},
	})
	r.Register(&EntityType{Name: "Comment"})
	r.Register(&EntityType{Name: "Profile"})
	r.Register(&EntityType{Name: "Role"})
	return r
}

func TestRegistryFillsDefaults(t *testing.T) {
	r := newTestRegistry()

	user, ok := r.Type("User")
	require.True(t, ok)
	assert.Equal(t, "users", user.Table)
	assert.Equal(t, "id", user.PrimaryKey)
	require.NotNil(t, user.New)

	e := user.New(map[string]interface{}{"id": 1})
	assert.Equal(t, 1, e.Attribute("id"))
}

func TestRegistryDescriptorErrors(t *testing.T) {
	r := newTestRegistry()

	_, _, err := r.Descriptor("Ghost", "posts")
	assert.ErrorIs(t, err, eloquent.ErrUnknownEntityType)

	_, _, err = r.Descriptor("User", "ghosts")
	require.ErrorIs(t, err, eloquent.ErrUnknownRelation)

	var rerr *eloquent.RelationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "User", rerr.EntityType)
	assert.Equal(t, "ghosts", rerr.Relation)
}

func TestBuildTreeSharesCommonPrefix(t *testing.T) {
	tree := buildTree([]string{"posts.comments", "posts.author", "profile"})
	require.Len(t, tree, 2)
	assert.ElementsMatch(t, []string{"comments", "author"}, tree["posts"])
	assert.Empty(t, tree["profile"])
}

func TestBuildTreeDeepPaths(t *testing.T) {
	tree := buildTree([]string{"posts.comments.author"})
	require.Len(t, tree, 1)
	assert.Equal(t, []string{"comments.author"}, tree["posts"])
}

func TestPivotTableForSortsNames(t *testing.T) {
	assert.Equal(t, "role_user", pivotTableFor("User", "Role"))
	assert.Equal(t, "role_user", pivotTableFor("Role", "User"))
}

func TestForeignKeyConvention(t *testing.T) {
	assert.Equal(t, "user_id", foreignKeyFor("User"))
	assert.Equal(t, "blog_post_id", foreignKeyFor("BlogPost"))
}

func TestLoaderLoadsTopLevelRelations(t *testing.T) {
	src := newFakeSource()
	src.tables["posts"] = []map[string]interface{}{
		{"id": 10, "user_id": 1},
		{"id": 11, "user_id": 2},
	}
	src.tables["profiles"] = []map[string]interface{}{
		{"id": 100, "user_id": 1},
	}
	parents := records(
		map[string]interface{}{"id": 1},
		map[string]interface{}{"id": 2},
	)

	loader := NewLoader(newTestRegistry())
	err := loader.Load(context.Background(), src, "User", parents, []string{"posts", "profile"})
	require.NoError(t, err)
	assert.Equal(t, 2, src.queries)

	posts, _ := parents[0].Relation("posts")
	assert.Len(t, posts.([]Entity), 1)
	profile, _ := parents[0].Relation("profile")
	assert.NotNil(t, profile)
	profile, _ = parents[1].Relation("profile")
	assert.Nil(t, profile)
}

func TestLoaderLoadsNestedPaths(t *testing.T) {
	src := newFakeSource()
	src.tables["posts"] = []map[string]interface{}{
		{"id": 10, "user_id": 1},
		{"id": 11, "user_id": 2},
	}
	src.tables["comments"] = []map[string]interface{}{
		{"id": 100, "post_id": 10, "body": "nice"},
		{"id": 101, "post_id": 10, "body": "thanks"},
		{"id": 102, "post_id": 11, "body": "hm"},
	}
	parents := records(
		map[string]interface{}{"id": 1},
		map[string]interface{}{"id": 2},
	)

	loader := NewLoader(newTestRegistry())
	err := loader.Load(context.Background(), src, "User", parents, []string{"posts.comments"})
	require.NoError(t, err)
	// One query per level, independent of parent count.
	assert.Equal(t, 2, src.queries)

	posts, _ := parents[0].Relation("posts")
	require.Len(t, posts.([]Entity), 1)
	comments, ok := posts.([]Entity)[0].Relation("comments")
	require.True(t, ok)
	assert.Len(t, comments.([]Entity), 2)

	posts, _ = parents[1].Relation("posts")
	comments, _ = posts.([]Entity)[0].Relation("comments")
	assert.Len(t, comments.([]Entity), 1)
}

func TestLoaderNestedBelongsTo(t *testing.T) {
	src := newFakeSource()
	src.tables["posts"] = []map[string]interface{}{
		{"id": 10, "user_id": 1},
	}
	src.tables["users"] = []map[string]interface{}{
		{"id": 1, "name": "ada"},
	}
	parents := records(map[string]interface{}{"id": 1})

	loader := NewLoader(newTestRegistry())
	err := loader.Load(context.Background(), src, "User", parents, []string{"posts.author"})
	require.NoError(t, err)

	posts, _ := parents[0].Relation("posts")
	author, ok := posts.([]Entity)[0].Relation("author")
	require.True(t, ok)
	assert.Equal(t, "ada", author.(Entity).Attribute("name"))
}

func TestLoaderBelongsToManyDefaults(t *testing.T) {
	src := newFakeSource()
	src.tables["roles"] = []map[string]interface{}{{"id": 5, "name": "admin"}}
	src.tables["role_user"] = []map[string]interface{}{{"user_id": 1, "role_id": 5}}
	parents := records(map[string]interface{}{"id": 1})

	loader := NewLoader(newTestRegistry())
	err := loader.Load(context.Background(), src, "User", parents, []string{"roles"})
	require.NoError(t, err)

	roles, _ := parents[0].Relation("roles")
	require.Len(t, roles.([]Entity), 1)
	assert.Equal(t, "admin", roles.([]Entity)[0].Attribute("name"))
}

func TestLoaderUnknownRelationFailsTheLoad(t *testing.T) {
	loader := NewLoader(newTestRegistry())
	parents := records(map[string]interface{}{"id": 1})
	err := loader.Load(context.Background(), newFakeSource(), "User", parents, []string{"ghosts"})
	assert.ErrorIs(t, err, eloquent.ErrUnknownRelation)
}

func TestLoaderUnregisteredRelatedTypeFailsTheLoad(t *testing.T) {
	r := NewRegistry()
	r.Register(&EntityType{Name: "User", Relations: map[string]Descriptor{
		"posts": {Kind: HasManyKind, Related: "Post"}, // Post never registered
	}})
	loader := NewLoader(r)
	err := loader.Load(context.Background(), newFakeSource(), "User", records(map[string]interface{}{"id": 1}), []string{"posts"})
	assert.ErrorIs(t, err, eloquent.ErrUnknownEntityType)
}

func TestLoaderNoPathsIsNoop(t *testing.T) {
	src := newFakeSource()
	loader := NewLoader(newTestRegistry())
	require.NoError(t, loader.Load(context.Background(), src, "User", records(map[string]interface{}{"id": 1}), nil))
	assert.Equal(t, 0, src.queries)
}
