// Package i18n holds the fallback texts the client itself emits in
// notifications. Full UI catalogs live with the UI shell.
package i18n

import (
	"golang.org/x/text/language"
)

type Key string

const (
	TitleSuccess Key = "title.success"
	TitleError   Key = "title.error"
	TitleWarning Key = "title.warning"

	GenericError Key = "generic.error"

	AccountCreated      Key = "account.created"
	AccountUpdated      Key = "account.updated"
	AccountVerified     Key = "account.verified"
	AccountVerifyFailed Key = "account.verify_failed"
	AccountActivated    Key = "account.activated"
	AccountDeactivated  Key = "account.deactivated"
	AccountDeleted      Key = "account.deleted"
	AccountFailed       Key = "account.failed"
	AccountDisconnected Key = "account.disconnected"

	LinkingSucceeded Key = "linking.succeeded"
	LinkingCancelled Key = "linking.cancelled"
	LinkingFailed    Key = "linking.failed"
	LinkingSDKFailed Key = "linking.sdk_failed"

	MessageSendFailed   Key = "message.send_failed"
	ConversationFailed  Key = "conversation.failed"
	ConversationArchive Key = "conversation.archived"

	AuthLoginFailed     Key = "auth.login_failed"
	AuthRegistered      Key = "auth.registered"
	AuthRegisterFailed  Key = "auth.register_failed"
	AuthResetSent       Key = "auth.reset_sent"
	AuthResetFailed     Key = "auth.reset_failed"
	AuthPasswordChanged Key = "auth.password_changed"

	PropertyCreated Key = "property.created"
	PropertyUpdated Key = "property.updated"
	PropertyDeleted Key = "property.deleted"
	PropertyFailed  Key = "property.failed"
)

var en = map[Key]string{
	TitleSuccess: "Success",
	TitleError:   "Error",
	TitleWarning: "Warning",

	GenericError: "Something went wrong. Please try again.",

	AccountCreated:      "WhatsApp account created.",
	AccountUpdated:      "WhatsApp account updated.",
	AccountVerified:     "WhatsApp account verified.",
	AccountVerifyFailed: "The WhatsApp account could not be verified.",
	AccountActivated:    "WhatsApp account activated.",
	AccountDeactivated:  "WhatsApp account deactivated.",
	AccountDeleted:      "WhatsApp account deleted.",
	AccountFailed:       "The WhatsApp account operation failed.",
	AccountDisconnected: "A WhatsApp account was disconnected.",

	LinkingSucceeded: "WhatsApp Business account linked.",
	LinkingCancelled: "Authorization was cancelled or not granted.",
	LinkingFailed:    "The WhatsApp Business account could not be linked.",
	LinkingSDKFailed: "The Facebook login could not be started.",

	MessageSendFailed:   "The message could not be sent.",
	ConversationFailed:  "The conversation could not be updated.",
	ConversationArchive: "Conversation archived.",

	AuthLoginFailed:     "Invalid email or password.",
	AuthRegistered:      "Your account has been created.",
	AuthRegisterFailed:  "Registration failed.",
	AuthResetSent:       "If the address exists, a reset link has been sent.",
	AuthResetFailed:     "The password could not be reset.",
	AuthPasswordChanged: "Your password has been changed.",

	PropertyCreated: "Property created.",
	PropertyUpdated: "Property updated.",
	PropertyDeleted: "Property deleted.",
	PropertyFailed:  "The property could not be saved.",
}

var es = map[Key]string{
	TitleSuccess: "Listo",
	TitleError:   "Error",
	TitleWarning: "Atención",

	GenericError: "Algo salió mal. Inténtalo de nuevo.",

	AccountCreated:      "Cuenta de WhatsApp creada.",
	AccountUpdated:      "Cuenta de WhatsApp actualizada.",
	AccountVerified:     "Cuenta de WhatsApp verificada.",
	AccountVerifyFailed: "No se pudo verificar la cuenta de WhatsApp.",
	AccountActivated:    "Cuenta de WhatsApp activada.",
	AccountDeactivated:  "Cuenta de WhatsApp desactivada.",
	AccountDeleted:      "Cuenta de WhatsApp eliminada.",
	AccountFailed:       "La operación sobre la cuenta de WhatsApp falló.",
	AccountDisconnected: "Una cuenta de WhatsApp se desconectó.",

	LinkingSucceeded: "Cuenta de WhatsApp Business vinculada.",
	LinkingCancelled: "La autorización fue cancelada o no concedida.",
	LinkingFailed:    "No se pudo vincular la cuenta de WhatsApp Business.",
	LinkingSDKFailed: "No se pudo iniciar el inicio de sesión de Facebook.",

	MessageSendFailed:   "No se pudo enviar el mensaje.",
	ConversationFailed:  "No se pudo actualizar la conversación.",
	ConversationArchive: "Conversación archivada.",

	AuthLoginFailed:     "Correo o contraseña incorrectos.",
	AuthRegistered:      "Tu cuenta ha sido creada.",
	AuthRegisterFailed:  "No se pudo completar el registro.",
	AuthResetSent:       "Si la dirección existe, te enviamos un enlace para restablecerla.",
	AuthResetFailed:     "No se pudo restablecer la contraseña.",
	AuthPasswordChanged: "Tu contraseña fue cambiada.",

	PropertyCreated: "Propiedad creada.",
	PropertyUpdated: "Propiedad actualizada.",
	PropertyDeleted: "Propiedad eliminada.",
	PropertyFailed:  "No se pudo guardar la propiedad.",
}

// Catalog resolves keys for a locale preference, falling back to English.
type Catalog struct {
	matcher  language.Matcher
	tags     []language.Tag
	messages []map[Key]string
}

// Default is the built-in en/es catalog.
func Default() *Catalog {
	return &Catalog{
		matcher:  language.NewMatcher([]language.Tag{language.English, language.Spanish}),
		tags:     []language.Tag{language.English, language.Spanish},
		messages: []map[Key]string{en, es},
	}
}

// Match returns the supported tag closest to the preference, which may be a
// bare tag ("es-AR") or an Accept-Language list.
func (c *Catalog) Match(pref string) language.Tag {
	_, idx := language.MatchStrings(c.matcher, pref)
	return c.tags[idx]
}

// T returns the text for key in the preferred locale.
func (c *Catalog) T(pref string, key Key) string {
	_, idx := language.MatchStrings(c.matcher, pref)
	if s, ok := c.messages[idx][key]; ok {
		return s
	}
	if s, ok := c.messages[0][key]; ok {
		return s
	}
	return string(key)
}
