// Package notify 定义满员通知的发送契约。
// 短信通道本身不在本服务内，Notifier 只负责把批次可靠地交给异步任务。
package notify

import (
	"context"
	"strconv"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	"github.com/swust-xl/CampusPartner-sub001/internal/tasks"
)

// 短信模板变量名
const (
	VarRoomID        = "roomId"
	VarStartLocation = "startLocation"
	VarEndLocation   = "endLocation"
	VarMemberCount   = "memberCount"
)

// Message 单个收件人及其模板变量
type Message = tasks.NotificationMessage

// Notifier 通知协作者。roomTag 决定使用的短信模板。
type Notifier interface {
	SendSingle(ctx context.Context, to, roomTag string, vars map[string]string) error
	SendBatch(ctx context.Context, roomTag string, messages []Message) error
}

// BuildVars 构造房间的模板变量。
// endLocation 总是存在；只有拼车 (transport) 房间才带 startLocation。
func BuildVars(room *domain.Room) map[string]string {
	vars := map[string]string{
		VarRoomID:      room.ID,
		VarEndLocation: room.EndLocation.Name,
		VarMemberCount: strconv.Itoa(len(room.Members)),
	}
	if room.Tag == domain.TagTransport {
		vars[VarStartLocation] = room.StartLocation.Name
	}
	return vars
}

// BuildBatch 为每个有手机号的成员生成一条消息，返回缺少手机号的成员。
func BuildBatch(room *domain.Room, contacts map[string]string) (messages []Message, missing []string) {
	vars := BuildVars(room)
	for _, member := range room.Members {
		phone, ok := contacts[member]
		if !ok || phone == "" {
			missing = append(missing, member)
			continue
		}
		messages = append(messages, Message{To: phone, Vars: vars})
	}
	return messages, missing
}
