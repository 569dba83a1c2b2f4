package handlers

// Flash messages shown to the user.
const (
	MsgInvalidInput   = "输入错误"
	MsgMovieCreated   = "数据创建成功"
	MsgMovieUpdated   = "电影信息已经更新"
	MsgMovieDeleted   = "删除数据成功"
	MsgSettingsSaved  = "设置name成功"
	MsgLoginSucceeded = "登录成功"
	MsgBadCredentials = "用户名或密码输入错误"
	MsgLoggedOut      = "退出登录"
	MsgLoginRequired  = "没有登录"
)
