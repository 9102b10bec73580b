package common

import (
	"encoding/json"
	"testing"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/lainio/err2/assert"
)

func TestProblemReport(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	pr := NewProblemReport(CodeIssuanceAbandoned, "holder declined", nil)
	assert.Equal(pr.Type, pltype.NotificationProblemReport)
	assert.Equal(pr.Reason(), "holder declined")
	assert.Equal(pr.Error(), "problem report issuance-abandoned: holder declined")
}

func TestProblemReportFromACApy(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	prJSON := `{"@type":"did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/notification/1.0/problem-report",
"@id":"3d5a6a3c","description":{"code":"issuance-abandoned"},
"explain-ltxt":"Issuance abandoned","~thread":{"thid":"1234"}}`
	var pr ProblemReport
	assert.NoError(json.Unmarshal([]byte(prJSON), &pr))
	assert.Equal(pr.Description.Code, CodeIssuanceAbandoned)
	assert.Equal(pr.Reason(), "Issuance abandoned")
	assert.Equal(pr.Thread.ID, "1234")
}
