package service

// User-facing messages. Clients branch on error codes, never on these.
const (
	MsgEmailTaken          = "이미 사용 중인 이메일입니다."
	MsgNicknameTaken       = "이미 사용 중인 닉네임입니다."
	MsgInvalidCredentials  = "이메일 또는 비밀번호가 올바르지 않습니다."
	MsgSocialAccount       = "이 계정은 소셜 로그인으로 가입되었습니다. 해당 소셜 계정으로 로그인해 주세요."
	MsgInvalidRefreshToken = "유효하지 않거나 만료된 RefreshToken입니다."
	MsgSessionNotFound     = "세션이 만료되었거나 이미 로그아웃되었습니다."
	MsgSessionExpired      = "세션이 만료되었습니다. 다시 로그인해 주세요."
)
