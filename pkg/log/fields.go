package log

import (
	"net"

	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameType      = "type"
	FieldNameMember    = "member"
	FieldNameSession   = "sessionID"
	FieldNameRemote    = "remote"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldType 返回一个包含类型名的 zap 字段。
func FieldType(typeName string) zap.Field {
	return zap.String(FieldNameType, typeName)
}

// FieldMember 返回一个包含成员名的 zap 字段。
func FieldMember(member string) zap.Field {
	return zap.String(FieldNameMember, member)
}

// FieldSession 返回一个包含会话 ID 的 zap 字段。
func FieldSession(id uint64) zap.Field {
	return zap.Uint64(FieldNameSession, id)
}

// FieldRemote 返回对端地址字段，addr 为 nil 时记录为空字符串。
func FieldRemote(addr net.Addr) zap.Field {
	if addr == nil {
		return zap.String(FieldNameRemote, "")
	}
	return zap.String(FieldNameRemote, addr.String())
}
