package ingest

// DefaultScript is the demo conversation replayed by the simulation
// path when live transcription is unavailable.
var DefaultScript = []string{
	"Hi, nice to meet you.",
	"I'm really passionate about technology and innovation.",
	"In my free time, I love watching movies, especially Christopher Nolan films.",
	"I also enjoy listening to jazz music and going to art galleries.",
	"I'm particularly interested in startups with creative cultures.",
	"I believe in work-life balance and teams that value creativity.",
}
