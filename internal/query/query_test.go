package query_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swust-xl/CampusPartner-sub001/internal/query"
)

func TestParseFields(t *testing.T) {
	fields, err := query.ParseFields("tag, maxMemberNum,start_time")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag", "maxMemberNum", "start_time"}, fields)

	fields, err = query.ParseFields("")
	require.NoError(t, err)
	assert.Nil(t, fields, "空字符串表示全部字段")

	for _, bad := range []string{"tag,", "1tag", "max-member", "tag;drop", "_tag", "tag__x"} {
		_, err := query.ParseFields(bad)
		assert.True(t, errors.Is(err, query.ErrSyntax), "%q 应被拒绝", bad)
	}
}

func TestParseFilters(t *testing.T) {
	filters, err := query.ParseFilters("tag=transport,maxMemberNum>=3,status!=CLOSED,max_member_num<5")
	require.NoError(t, err)
	assert.Equal(t, []query.Filter{
		{Key: "tag", Op: query.OpEq, Value: "transport"},
		{Key: "maxMemberNum", Op: query.OpGte, Value: "3"},
		{Key: "status", Op: query.OpNe, Value: "CLOSED"},
		{Key: "max_member_num", Op: query.OpLt, Value: "5"},
	}, filters)

	for _, bad := range []string{"tag", "tag=", "=x", "tag~x", "a=1,,b=2"} {
		_, err := query.ParseFilters(bad)
		assert.True(t, errors.Is(err, query.ErrSyntax), "%q 应被拒绝", bad)
	}
}

func TestParseSorts(t *testing.T) {
	sorts, err := query.ParseSorts("-created_at,+startTime")
	require.NoError(t, err)
	assert.Equal(t, []query.Sort{{Key: "created_at", Desc: true}, {Key: "startTime"}}, sorts)

	for _, bad := range []string{"created_at", "*x", "-", "+-x"} {
		_, err := query.ParseSorts(bad)
		assert.True(t, errors.Is(err, query.ErrSyntax), "%q 应被拒绝", bad)
	}
}

func TestNewPage(t *testing.T) {
	page, err := query.NewPage(0, 0)
	require.NoError(t, err)
	assert.Equal(t, query.Page{Offset: 0, Limit: query.DefaultLimit}, page)

	page, err = query.NewPage(40, query.MaxLimit)
	require.NoError(t, err)
	assert.Equal(t, 20, page.Limit)

	_, err = query.NewPage(-1, 10)
	assert.ErrorIs(t, err, query.ErrSyntax)
	_, err = query.NewPage(0, 21)
	assert.ErrorIs(t, err, query.ErrSyntax)
}

func TestParse(t *testing.T) {
	q, err := query.Parse("tag", "tag=study", "-createdAt", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"tag"}, q.Fields)
	assert.Len(t, q.Filters, 1)
	assert.Len(t, q.Sorts, 1)
	assert.Equal(t, query.Page{Offset: 5, Limit: 10}, q.Page)

	_, err = query.Parse("", "", "", 0, 50)
	assert.ErrorIs(t, err, query.ErrSyntax)
}
