package basic

type UserMeta struct {
	UserId   string `protobuf:"bytes,1,opt,name=userId,proto3" form:"userId" json:"userId" query:"userId"`
	AppId    int64  `protobuf:"varint,2,opt,name=appId,proto3" form:"appId" json:"appId" query:"appId"`
	DeviceId string `protobuf:"bytes,3,opt,name=deviceId,proto3" form:"deviceId" json:"deviceId" query:"deviceId"`
}

func (m *UserMeta) GetUserId() string {
	if m == nil {
		return ""
	}
	return m.UserId
}

type PaginationOptions struct {
	Page  *int64 `protobuf:"varint,1,opt,name=page,proto3,oneof" form:"page" json:"page" query:"page"`
	Limit *int64 `protobuf:"varint,2,opt,name=limit,proto3,oneof" form:"limit" json:"limit" query:"limit"`
}

type Response struct {
	Code int64  `protobuf:"varint,1,opt,name=code,proto3" form:"code" json:"code" query:"code"`
	Msg  string `protobuf:"bytes,2,opt,name=msg,proto3" form:"msg" json:"msg" query:"msg"`
}
