// Package chat contains the Twitch chat listener feeding the tracker.
//
// It connects to Twitch IRC for the configured channel and turns chat
// activity into records:
//   - cheer messages (msg.Bits > 0) become bit donation records,
//   - "submysterygift" user notices become gift sub records,
//   - messages starting with "!spin" are logged as command audit records,
//     and when the sender is a moderator or the broadcaster the named target
//     gets their latest record marked for a spin,
//   - "!setthreshold bits=<n> subs=<n>" from a moderator updates the
//     configured thresholds.
//
// Credentials: TWITCH_BOT_USERNAME plus a TWITCH_OAUTH_TOKEN with chat:read
// scope. Without them the listener falls back to an anonymous (read-only)
// connection, which is all the tracker needs.
package chat
