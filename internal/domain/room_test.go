package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
)

func TestRoom_MemberSet(t *testing.T) {
	room := &domain.Room{MaxMemberNum: 2, Status: domain.RoomOpen}

	assert.True(t, room.AddMember("a"))
	assert.False(t, room.AddMember("a"), "重复加入不应改变成员集合")
	assert.False(t, room.IsFull())
	assert.True(t, room.AddMember("b"))
	assert.True(t, room.IsFull())

	assert.True(t, room.RemoveMember("a"))
	assert.False(t, room.RemoveMember("a"))
	assert.Equal(t, []string{"b"}, room.Members)
}

func TestRoom_CloseIsMonotonic(t *testing.T) {
	room := &domain.Room{Status: domain.RoomOpen}

	assert.True(t, room.Close())
	assert.False(t, room.Close(), "已关闭的房间再次关闭不应产生状态变化")
	assert.Equal(t, domain.RoomClosed, room.Status)
	assert.False(t, room.IsOpen())
}
