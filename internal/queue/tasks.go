package queue

const TypeDisplayNameSet = "identity:set_display_name"

type DisplayNameSetPayload struct {
	IDToken     string `json:"id_token"`
	DisplayName string `json:"display_name"`
}
