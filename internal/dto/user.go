package dto

// DeviceTokenPayload registers an Expo push token for the caller's device.
type DeviceTokenPayload struct {
	Token string `json:"token" validate:"required"`
}
