package remote

import (
	"testing"

	"cuelang.org/go/cue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	for _, a := range []Action{
		"classes.list", "behavior.list", "messageThreads.list", "questions.list",
		"students.create", "students.update", "students.delete",
		"behavior.create", "announcements.delete",
		ActionSaveAttendance, ActionCreateReply, ActionUpdateReply,
		ActionCreateThread, ActionCreateMessage,
		ActionLogin, ActionRegister, ActionWeeklySummary, ActionMonthlySummary,
	} {
		assert.True(t, Known(a), "%s should be catalogued", a)
	}

	for _, a := range []Action{
		"behaviors.list", "threads.list", "attendance.create", "messages.delete", "auth.logout",
	} {
		assert.False(t, Known(a), "%s should not be catalogued", a)
	}

	// 12 lists + 8 CRUD domains * 3 + 9 special actions.
	assert.Len(t, Actions(), 12+24+9)
}

func TestAction_Parts(t *testing.T) {
	a := Of("messageThreads", VerbCreate)
	assert.Equal(t, ActionCreateThread, a)
	assert.Equal(t, "messageThreads", a.Domain())
	assert.Equal(t, "create", a.Verb())
}

func TestValidator_EveryDefinitionResolves(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	for a, spec := range catalog {
		for _, def := range []string{spec.request, spec.response} {
			d := v.schema.LookupPath(cue.ParsePath(def))
			assert.True(t, d.Exists(), "%s: definition %s missing", a, def)
		}
	}
}

func TestValidator_Requests(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		action  Action
		payload string
		valid   bool
	}{
		{"list takes empty object", "classes.list", `{}`, true},
		{"create with id", "students.create", `{"id":"s1","fullName":"An","xp":0,"level":1}`, true},
		{"create keeps unknown fields", "students.create", `{"id":"s1","nickname":"Bi"}`, true},
		{"create without id", "students.create", `{"fullName":"An"}`, false},
		{"create with empty id", "classes.create", `{"id":""}`, false},
		{"xp must be numeric", "students.update", `{"id":"s1","xp":"lots"}`, false},
		{"delete", "tasks.delete", `{"id":"t1"}`, true},
		{"delete without id", "tasks.delete", `{}`, false},
		{"save batch", ActionSaveAttendance, `{"classId":"c1","date":"2024-09-05","items":[{"studentId":"s1","status":"x"}]}`, true},
		{"save batch bad date", ActionSaveAttendance, `{"classId":"c1","date":"05/09/2024","items":[]}`, false},
		{"save batch item without student", ActionSaveAttendance, `{"classId":"c1","date":"2024-09-05","items":[{"status":"x"}]}`, false},
		{"reply needs natural key", ActionCreateReply, `{"id":"r1","taskId":"t1"}`, false},
		{"message", ActionCreateMessage, `{"threadId":"th1","fromRole":"TEACHER","content":"hi"}`, true},
		{"message bad role", ActionCreateMessage, `{"threadId":"th1","fromRole":"JANITOR","content":"hi"}`, false},
		{"login", ActionLogin, `{"username":"gv01","password":"x"}`, true},
		{"login blank user", ActionLogin, `{"username":"","password":"x"}`, false},
		{"register", ActionRegister, `{"username":"gv02","password":"x","fullName":"B","role":"TEACHER"}`, true},
		{"register bad role", ActionRegister, `{"username":"gv02","password":"x","role":"ROOT"}`, false},
		{"weekly", ActionWeeklySummary, `{"classId":"c1","startDate":"2024-09-02","endDate":"2024-09-08"}`, true},
		{"monthly", ActionMonthlySummary, `{"classId":"c1","month":9,"year":2024}`, true},
		{"monthly month 13", ActionMonthlySummary, `{"classId":"c1","month":13,"year":2024}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRequest(tt.action, []byte(tt.payload))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var se *SchemaError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestValidator_Responses(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		action Action
		data   string
		valid  bool
	}{
		{"list", "classes.list", `[{"id":"c1"}]`, true},
		{"empty list", "classes.list", `[]`, true},
		{"null list", "classes.list", `null`, true},
		{"missing data", "classes.list", ``, true},
		{"object instead of list", "classes.list", `{"id":"c1"}`, false},
		{"thread without key", "messageThreads.list", `[{"id":"th1"}]`, false},
		{"login null", ActionLogin, `null`, true},
		{"login user", ActionLogin, `{"id":"u1","username":"gv01","role":"TEACHER"}`, true},
		{"login user bad role", ActionLogin, `{"id":"u1","username":"gv01","role":"GUEST"}`, false},
		{"write result is free-form", "classes.create", `{"updated":1}`, true},
		{"report", ActionWeeklySummary, `{"attendanceRate":97.5,"totalAbsences":2,"topPraise":null}`, true},
		{"report wrong type", ActionWeeklySummary, `{"totalAbsences":"two"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateResponse(tt.action, []byte(tt.data))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidator_UnknownAction(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	assert.ErrorIs(t, v.ValidateRequest("grades.list", []byte(`{}`)), ErrUnknownAction)
}
