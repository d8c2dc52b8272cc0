package speech

import "strings"

// 浏览器端合成时使用的音色提示。
const (
	VoiceMale   = "male"
	VoiceFemale = "female"
)

// VoiceFor 根据场景中来电方的性别选择音色，未知时默认男声。
func VoiceFor(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "female", "f", "woman":
		return VoiceFemale
	default:
		return VoiceMale
	}
}
