package registration

import "strings"

// Manifest describes the app to the host platform: identity, required
// permissions and the webhook subscriptions the platform must register.
type Manifest struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	About          string            `json:"about"`
	Permissions    []string          `json:"permissions"`
	AppURL         string            `json:"appUrl"`
	TokenTargetURL string            `json:"tokenTargetUrl"`
	Webhooks       []WebhookManifest `json:"webhooks"`
}

type WebhookManifest struct {
	Name       string   `json:"name"`
	SyncEvents []string `json:"syncEvents"`
	Query      string   `json:"query"`
	TargetURL  string   `json:"targetUrl"`
}

const transactionEventQuery = `subscription {
  event {
    ... on TransactionInitializeSession { recipient { id } }
  }
}`

// paymentEvents are the synchronous session webhooks, keyed by endpoint path.
var paymentEvents = []struct {
	path  string
	event string
}{
	{"payment-gateway-initialize-session", "PAYMENT_GATEWAY_INITIALIZE_SESSION"},
	{"transaction-initialize-session", "TRANSACTION_INITIALIZE_SESSION"},
	{"transaction-process-session", "TRANSACTION_PROCESS_SESSION"},
	{"transaction-charge-requested", "TRANSACTION_CHARGE_REQUESTED"},
	{"transaction-refund-requested", "TRANSACTION_REFUND_REQUESTED"},
}

// BuildManifest assembles the descriptor served at the manifest endpoint.
// baseURL is this app's externally reachable origin.
func BuildManifest(appID, appName, version, baseURL string) *Manifest {
	base := strings.TrimRight(baseURL, "/")

	webhooks := make([]WebhookManifest, 0, len(paymentEvents))
	for _, pe := range paymentEvents {
		webhooks = append(webhooks, WebhookManifest{
			Name:       pe.path,
			SyncEvents: []string{pe.event},
			Query:      transactionEventQuery,
			TargetURL:  base + "/api/webhooks/" + pe.path,
		})
	}

	return &Manifest{
		ID:             appID,
		Name:           appName,
		Version:        version,
		About:          "Payment gateway bridge for Razorpay, Stripe and Xendit.",
		Permissions:    []string{"HANDLE_PAYMENTS"},
		AppURL:         base,
		TokenTargetURL: base + "/api/register",
		Webhooks:       webhooks,
	}
}
