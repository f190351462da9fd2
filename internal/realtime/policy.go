package realtime

import (
	"strings"

	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/jwt"
)

// 主题命名："<scope>:<id>"。
// user/role 两类在接入时自动订阅；table/class/exam/report_card/student
// 五类按资源逐个鉴权后才可加入。
const (
	topicPrefixUser       = "user:"
	topicPrefixRole       = "role:"
	topicPrefixTable      = "table:"
	topicPrefixClass      = "class:"
	topicPrefixExam       = "exam:"
	topicPrefixReportCard = "report_card:"
	topicPrefixStudent    = "student:"
)

// TopicUser 用户私有主题
func TopicUser(userID string) string { return topicPrefixUser + userID }

// TopicRole 角色广播主题
func TopicRole(role Role) string { return topicPrefixRole + string(role) }

// TopicTable 表级变更主题
func TopicTable(table string) string { return topicPrefixTable + table }

// TopicClass 班级主题
func TopicClass(classID string) string { return topicPrefixClass + classID }

// TopicExam 考试主题
func TopicExam(examID string) string { return topicPrefixExam + examID }

// TopicReportCard 成绩单主题
func TopicReportCard(reportCardID string) string { return topicPrefixReportCard + reportCardID }

// TopicStudent 学生主题
func TopicStudent(studentID string) string { return topicPrefixStudent + studentID }

// ── 表级主题分档 ──

// 原始身份数据表：仅管理员可订阅
var elevatedTables = map[string]struct{}{
	"users":    {},
	"students": {},
	"profiles": {},
}

// 教学数据表：教师及以上可订阅
var academicTables = map[string]struct{}{
	"report_cards":      {},
	"report_card_items": {},
	"exams":             {},
	"exam_sessions":     {},
	"exam_results":      {},
	"sync_audit_logs":   {},
}

// Policy 订阅鉴权策略：判定某个令牌能否订阅某个主题
type Policy interface {
	CanSubscribe(claims *jwt.Claims, topic string) bool
}

// claimsPolicy 基于 JWT 声明的默认策略。
// 默认拒绝：claims 为空、主题格式未知、或授权不覆盖目标资源时一律拒绝。
type claimsPolicy struct{}

// NewPolicy 创建默认订阅策略
func NewPolicy() Policy {
	return &claimsPolicy{}
}

func (p *claimsPolicy) CanSubscribe(claims *jwt.Claims, topic string) bool {
	if claims == nil || topic == "" {
		return false
	}
	role := NormalizeRole(claims.Role)

	scope, id, ok := splitTopic(topic)
	if !ok {
		return false
	}

	switch scope {
	case topicPrefixUser:
		// 只能订阅自己的用户主题
		return role == RoleAdmin || claims.UserID == id

	case topicPrefixRole:
		// 只能订阅自己所属角色的广播
		return role == RoleAdmin || string(role) == id

	case topicPrefixTable:
		if _, elevated := elevatedTables[id]; elevated {
			return role == RoleAdmin
		}
		if _, academic := academicTables[id]; academic {
			return role == RoleAdmin || role == RoleTeacher
		}
		// 其余表对任何已认证连接开放
		return true

	case topicPrefixClass:
		if role == RoleAdmin {
			return true
		}
		// 教师按任教班级，学生/家长按授权班级列表
		return contains(claims.ClassIDs, id)

	case topicPrefixExam, topicPrefixReportCard:
		if role == RoleAdmin {
			return true
		}
		// 教师端令牌不含逐考试/逐成绩单授权，放宽为有任一任教班级即可；
		// 学生/家长按授权 ID 列表精确匹配
		if role == RoleTeacher {
			return len(claims.ClassIDs) > 0
		}
		return contains(claims.StudentIDs, id) || contains(claims.ClassIDs, id)

	case topicPrefixStudent:
		if role == RoleAdmin {
			return true
		}
		// 学生主题对教师/家长/学生开放，仅限其授权学生
		return contains(claims.StudentIDs, id)

	default:
		return false
	}
}

// splitTopic 拆出主题前缀与资源 ID，ID 为空或前缀未知时判失败
func splitTopic(topic string) (scope, id string, ok bool) {
	i := strings.IndexByte(topic, ':')
	if i < 0 || i+1 >= len(topic) {
		return "", "", false
	}
	return topic[:i+1], topic[i+1:], true
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
