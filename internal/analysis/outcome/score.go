package outcome

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/disclosure"
)

// CallType 决定计分方向。
type CallType string

const (
	Scam       CallType = "scam"
	Legitimate CallType = "legitimate"
)

// ParseCallType 解析远端返回的通话类型，未知值按诈骗处理。
func ParseCallType(raw string) (CallType, bool) {
	switch CallType(strings.ToLower(strings.TrimSpace(raw))) {
	case Scam:
		return Scam, true
	case Legitimate:
		return Legitimate, true
	default:
		return Scam, false
	}
}

// Input 是一次通话结束时交给计分引擎的全部事实。
type Input struct {
	CallType        CallType
	DurationSeconds int
	Disclosed       bool
	Requested       []disclosure.Category
	// Declined 表示来电在接通前被拒接。
	Declined bool
}

// Result 是计分结果及面向玩家的结论。
type Result struct {
	Points          int      `json:"points"`
	Accuracy        int      `json:"accuracy"`
	IsCorrect       bool     `json:"isCorrect"`
	Title           string   `json:"title"`
	Tip             string   `json:"tip"`
	CallType        CallType `json:"callType"`
	DurationSeconds int      `json:"durationSeconds"`
	Declined        bool     `json:"declined"`
}

// Score 按通话类型、时长、是否泄露信息计算得分。时长区间均为左闭右开。
func Score(in Input) Result {
	res := score(in)
	res.CallType = in.CallType
	res.Declined = in.Declined
	if !in.Declined {
		res.DurationSeconds = max(in.DurationSeconds, 0)
	}
	return res
}

func score(in Input) Result {
	duration := max(in.DurationSeconds, 0)

	if in.CallType == Legitimate {
		switch {
		case in.Declined:
			return Result{
				Title: "MISTAKE!",
				Tip:   "You declined a legitimate call from your bank! Always listen to the first few seconds to determine if it's real. Legitimate calls usually give their company name clearly.",
			}
		case in.Disclosed:
			return Result{
				Title: "RISKY!",
				Tip:   "You gave personal information on a legitimate call. While this was actually safe, in a real scenario you should verify the caller first. Legitimate companies won't pressure you for sensitive info immediately - ask for a callback number and verify it independently.",
			}
		case duration >= 60:
			return Result{
				Points: 200, Accuracy: 95, IsCorrect: true,
				Title: "EXCELLENT!",
				Tip:   "Great job! You recognized this as a legitimate call and handled it properly. You did not give sensitive information until verifying the caller. This shows good judgment distinguishing legitimate from scam calls.",
			}
		case duration >= 30:
			return Result{
				Points: 150, Accuracy: 85, IsCorrect: true,
				Title: "GOOD!",
				Tip:   "Good response! You stayed on the line and didn't give unnecessary personal information. However, you ended the call quickly. Legitimate callers usually have a specific reason - it's fine to listen and verify before providing sensitive data.",
			}
		default:
			return Result{
				Points: 50, Accuracy: 60,
				Title: "TOO CAUTIOUS",
				Tip:   "You hung up very quickly. While caution is good, you may have missed important information from your actual bank or service provider. Always ask the caller for their name, department, and reason for calling. You can always hang up and call them back using the official number on your card.",
			}
		}
	}

	switch {
	case in.Declined:
		return Result{
			Points: 300, Accuracy: 100, IsCorrect: true,
			Title: "PERFECT!",
			Tip:   "Excellent! You rejected the call immediately without engaging. This is the absolute best defense - never let scammers keep you on the line.",
		}
	case in.Disclosed:
		return Result{
			Title: "COMPROMISED!",
			Tip: fmt.Sprintf("You gave personal information to a scammer! They asked for: %s. In a real scenario, your identity and money could be stolen. NEVER give sensitive info to unsolicited callers.",
				describeCategories(in.Requested)),
		}
	case duration < 30:
		return Result{
			Points: 300, Accuracy: 100, IsCorrect: true,
			Title: "EXCELLENT!",
			Tip:   "Perfect! You recognized this as a scam and hung up immediately without giving any personal information. This is the best defense against phone scams.",
		}
	case duration < 60:
		return Result{
			Points: 250, Accuracy: 90, IsCorrect: true,
			Title: "GOOD!",
			Tip:   "Good response! You ended the call before giving sensitive information. Remember: legitimate companies never call asking for passwords, SSNs, or credit card numbers.",
		}
	case duration < 120:
		return Result{
			Points: 150, Accuracy: 70, IsCorrect: true,
			Title: "NEEDS WORK",
			Tip: fmt.Sprintf("You didn't give info, but you stayed on the line too long. The scammer requested %d types of personal info. In a real scenario, you could have been manipulated into giving it. Hang up sooner!",
				len(in.Requested)),
		}
	default:
		return Result{
			Points: 50, Accuracy: 50,
			Title: "AT RISK!",
			Tip: fmt.Sprintf("You stayed on the line for %s. Even though you didn't give info this time, prolonged engagement increases vulnerability. The scammer requested %d types of personal info. Trust your instincts and HANG UP on suspicious calls!",
				FormatDuration(duration), len(in.Requested)),
		}
	}
}

// FormatDuration 以 m:ss 形式展示通话时长。
func FormatDuration(seconds int) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func describeCategories(categories []disclosure.Category) string {
	if len(categories) == 0 {
		return "nothing specific yet"
	}
	labels := make([]string, 0, len(categories))
	for _, c := range categories {
		labels = append(labels, c.Label())
	}
	return strings.Join(labels, ", ")
}
