package screen

// ComposeFields names the message input and send button of a chat app.
type ComposeFields struct {
	Input string
	Send  string
}

// DefaultApps maps foreground packages to their compose field identifiers.
var DefaultApps = map[string]ComposeFields{
	"com.whatsapp": {
		Input: "com.whatsapp:id/entry",
		Send:  "com.whatsapp:id/send",
	},
	"com.whatsapp.w4b": {
		Input: "com.whatsapp.w4b:id/entry",
		Send:  "com.whatsapp.w4b:id/send",
	},
	"com.google.android.apps.messaging": {
		Input: "com.google.android.apps.messaging:id/compose_message_text",
		Send:  "com.google.android.apps.messaging:id/send_message_button_icon",
	},
	"org.thoughtcrime.securesms": {
		Input: "org.thoughtcrime.securesms:id/embedded_text_editor",
		Send:  "org.thoughtcrime.securesms:id/send_button",
	},
	"com.instagram.android": {
		Input: "com.instagram.android:id/row_thread_composer_edittext",
		Send:  "com.instagram.android:id/row_thread_composer_send_button_container",
	},
}

// DefaultSendLabels are send button captions in the languages we ship.
var DefaultSendLabels = []string{
	"Send", "Enviar", "Envoyer", "Senden", "Invia", "Verzenden",
	"Отправить", "Надіслати", "भेजें", "发送", "送信", "전송",
}
