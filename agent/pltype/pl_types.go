// Package pltype holds the message type URIs of the protocol families the
// exchange engine speaks. The legacy proprietary connection protocol lives
// under the findy.fi agent family, everything else is Aries.
package pltype

import "strings"

// Protocol constants
const (
	Nothing = ""
	Agent   = "urn:indy:sov:agent:message_type:findy.fi" // legacy pairwise protocol
	Aries   = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec"      // all Aries protocols
	DIDComm = "https://didcomm.org"                      // newer Aries prefix, accepted on input
)

// Legacy connection protocol constants
const (
	ProtocolConnection = "connection"
	Connection         = Agent + "/" + ProtocolConnection

	HandlerOffer    = "offer"
	HandlerRequest  = "request"
	HandlerAnswer   = "answer"
	HandlerRedirect = "redirect"
	HandlerAck      = "ack"

	LegacyConnectionOffer    = Connection + "/1.0/" + HandlerOffer
	LegacyConnectionRequest  = Connection + "/1.0/" + HandlerRequest
	LegacyConnectionAnswer   = Connection + "/1.0/" + HandlerAnswer
	LegacyConnectionRedirect = Connection + "/1.0/" + HandlerRedirect
	LegacyConnectionAck      = Connection + "/1.0/" + HandlerAck
)

// Notification protocol constants
const (
	ProtocolNotification      = "notification"
	HandlerProblemReport      = "problem-report"
	ProblemReport             = Aries + "/" + ProtocolNotification
	NotificationProblemReport = ProblemReport + "/1.0/" + HandlerProblemReport
	NotificationAck           = ProblemReport + "/1.0/" + HandlerAck

	ProtocolReportProblem = "report-problem"
	ReportProblem         = Aries + "/" + ProtocolReportProblem + "/1.0/" + HandlerProblemReport
)

// Aries connection protocol constants
const (
	Invitation                = "invitation"
	HandlerResponse           = "response"
	AriesProtocolConnection   = "connections"
	AriesConnection           = Aries + "/" + AriesProtocolConnection
	AriesConnectionV1         = AriesConnection + "/1.0"
	AriesConnectionInvitation = AriesConnectionV1 + "/" + Invitation
	AriesConnectionRequest    = AriesConnectionV1 + "/" + HandlerRequest
	AriesConnectionResponse   = AriesConnectionV1 + "/" + HandlerResponse
	AriesConnectionSignature  = Aries + "/signature/1.0/ed25519Sha512_single"
)

// Out-of-band protocol constants
const (
	ProtocolOutOfBand           = "out-of-band"
	HandlerHandshakeReuse       = "handshake-reuse"
	HandlerReuseAccepted        = "handshake-reuse-accepted"
	OutOfBand                   = Aries + "/" + ProtocolOutOfBand
	OutOfBandInvitation         = OutOfBand + "/1.1/" + Invitation
	OutOfBandHandshakeReuse     = OutOfBand + "/1.1/" + HandlerHandshakeReuse
	OutOfBandHandshakeReuseDone = OutOfBand + "/1.1/" + HandlerReuseAccepted
)

// Trust Ping protocol constants
const (
	ProtocolTrustPing   = "trust_ping"
	HandlerPing         = "ping"
	HandlerPingResponse = "ping_response"
	TrustPing           = Aries + "/" + ProtocolTrustPing
	TrustPingPing       = TrustPing + "/1.0/" + HandlerPing
	TrustPingResponse   = TrustPing + "/1.0/" + HandlerPingResponse
)

// Discover features protocol constants
const (
	ProtocolDiscoverFeatures = "discover-features"
	HandlerQuery             = "query"
	HandlerDisclose          = "disclose"
	DiscoverFeatures         = Aries + "/" + ProtocolDiscoverFeatures
	DiscoverFeaturesQuery    = DiscoverFeatures + "/1.0/" + HandlerQuery
	DiscoverFeaturesDisclose = DiscoverFeatures + "/1.0/" + HandlerDisclose
)

// Question answer protocol constants
const (
	ProtocolQuestionAnswer = "questionanswer"
	HandlerQuestion        = "question"
	HandlerAnswerQA        = "answer"
	QuestionAnswer         = Aries + "/" + ProtocolQuestionAnswer
	QuestionAnswerQuestion = QuestionAnswer + "/1.0/" + HandlerQuestion
	QuestionAnswerAnswer   = QuestionAnswer + "/1.0/" + HandlerAnswerQA
)

// Invite action protocol constants
const (
	ProtocolInviteAction = "invite-action"
	HandlerInvite        = "invite"
	InviteAction         = Aries + "/" + ProtocolInviteAction
	InviteActionInvite   = InviteAction + "/0.9/" + HandlerInvite
)

// Basic Message protocol constants
const (
	ProtocolBasicMessage = "basicmessage"
	HandlerMessage       = "message"
	BasicMessage         = Aries + "/" + ProtocolBasicMessage
	BasicMessageSend     = BasicMessage + "/1.0/" + HandlerMessage
)

// Issue Credential protocol constants
const (
	ProtocolIssueCredential          = "issue-credential"
	HandlerIssueCredentialPropose    = "propose-credential"
	HandlerIssueCredentialOffer      = "offer-credential"
	HandlerIssueCredentialRequest    = "request-credential"
	HandlerIssueCredentialIssue      = "issue-credential"
	ObjectTypeCredentialPreview      = "credential-preview"
	IssueCredential                  = Aries + "/" + ProtocolIssueCredential
	IssueCredentialPropose           = IssueCredential + "/1.0/" + HandlerIssueCredentialPropose
	IssueCredentialOffer             = IssueCredential + "/1.0/" + HandlerIssueCredentialOffer
	IssueCredentialRequest           = IssueCredential + "/1.0/" + HandlerIssueCredentialRequest
	IssueCredentialIssue             = IssueCredential + "/1.0/" + HandlerIssueCredentialIssue
	IssueCredentialACK               = IssueCredential + "/1.0/" + HandlerAck
	IssueCredentialCredentialPreview = IssueCredential + "/1.0/" + ObjectTypeCredentialPreview
)

// Present Proof protocol constants
const (
	ProtocolPresentProof            = "present-proof"
	HandlerPresentProofPropose      = "propose-presentation"
	HandlerPresentProofRequest      = "request-presentation"
	HandlerPresentProofPresentation = "presentation"
	ObjectTypePresentationPreview   = "presentation-preview"
	PresentProof                    = Aries + "/" + ProtocolPresentProof
	PresentProofPropose             = PresentProof + "/1.0/" + HandlerPresentProofPropose
	PresentProofRequest             = PresentProof + "/1.0/" + HandlerPresentProofRequest
	PresentProofPresentation        = PresentProof + "/1.0/" + HandlerPresentProofPresentation
	PresentProofACK                 = PresentProof + "/1.0/" + HandlerAck
	PresentationPreviewObj          = PresentProof + "/1.0/" + ObjectTypePresentationPreview
)

// Attachment IDs used inside credential and presentation messages.
const (
	CredentialOfferID     = "libindy-cred-offer-0"
	CredentialRequestID   = "libindy-cred-request-0"
	CredentialID          = "libindy-cred-0"
	RequestPresentationID = "libindy-request-presentation-0"
	PresentationID        = "libindy-presentation-0"
)

// Normalize maps the https://didcomm.org prefix to the did:sov one so the
// rest of the code needs to compare against one form only.
func Normalize(t string) string {
	if strings.HasPrefix(t, DIDComm) {
		return Aries + t[len(DIDComm):]
	}
	return t
}

// ProtocolAndHandler splits a message type to its protocol family name and
// handler name, e.g. "trust_ping" and "ping".
func ProtocolAndHandler(t string) (protocol, handler string) {
	t = Normalize(t)
	parts := strings.Split(t, "/")
	if len(parts) < 4 {
		return "", ""
	}
	return parts[len(parts)-3], parts[len(parts)-1]
}

// IsLegacy tells if the type belongs to the legacy agent family.
func IsLegacy(t string) bool {
	return strings.HasPrefix(t, Agent)
}

// IsProblemReport accepts both the notification and report-problem forms.
func IsProblemReport(t string) bool {
	t = Normalize(t)
	return t == NotificationProblemReport || t == ReportProblem
}

// IsAck accepts the generic notification ack and protocol specific acks.
func IsAck(t string) bool {
	_, h := ProtocolAndHandler(t)
	return h == HandlerAck
}
