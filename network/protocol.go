package network

// Inbound events
const (
	EventCreateRoom   = "create_room"
	EventJoinRoom     = "join_room"
	EventStartGame    = "start_game"
	EventBuzzIn       = "buzz_in"
	EventSubmitAnswer = "submit_answer"
	EventHeartbeat    = "heartbeat"
)

// Outbound events
const (
	EventAck             = "ack"
	EventError           = "error"
	EventRoomCreated     = "room_created"
	EventJoinedRoom      = "joined_room"
	EventPlayerJoined    = "player_joined"
	EventPlayerList      = "player_list"
	EventGameStarted     = "game_started"
	EventNewQuestion     = "new_question"
	EventPlayerBuzzed    = "player_buzzed"
	EventAnswerResult    = "answer_result"
	EventAnswerSubmitted = "answer_submitted"
	EventRoundEnd        = "round_end"
	EventRoomClosed      = "room_closed"
	EventPlayerLeft      = "player_left"
)
