package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// SMSService posts bulk text messages to an HTTP SMS gateway.
type SMSService struct {
	gatewayURL string
	apiKey     string
	client     *http.Client
	log        *logrus.Logger
}

// NewSMSService creates an SMSService. With an empty gateway URL every
// send is a logged no-op.
func NewSMSService(gatewayURL, apiKey string, log *logrus.Logger) *SMSService {
	return &SMSService{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type smsPayload struct {
	To      []string `json:"to"`
	Message string   `json:"message"`
}

// SendBulk delivers one message to the given phone numbers.
func (s *SMSService) SendBulk(phones []string, message string) error {
	if s.gatewayURL == "" {
		s.log.WithField("recipients", len(phones)).Debug("SMS gateway not configured")
		return nil
	}

	body, err := json.Marshal(smsPayload{To: phones, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).Error("failed to reach SMS gateway")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.WithField("status", resp.StatusCode).Error("SMS gateway rejected the batch")
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
