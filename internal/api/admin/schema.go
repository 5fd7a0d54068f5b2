package admin

import "github.com/Conversly/whatsapp-faq-bot/internal/types"

// TenantRequest creates or patches a tenant. On update, nil fields keep
// their stored value.
type TenantRequest struct {
	Name              *string `json:"name"`
	PhoneNumberID     *string `json:"whatsapp_phone_number_id"`
	APIToken          *string `json:"whatsapp_api_token"`
	SystemInstruction *string `json:"ai_system_instruction"`
	ModelName         *string `json:"ai_model_name"`
}

type FAQRequest struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
}

// FAQUpdate reports whether an update recomputed the embedding.
type FAQUpdate struct {
	FAQ        *types.FAQEntry `json:"faq"`
	Reembedded bool            `json:"reembedded"`
}

type DataResponse struct {
	types.BaseResponse
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}
