package server

// DefaultPage is the static page served on the root path.
const DefaultPage = "<!DOCTYPE html>" +
	"<html>" +
	"<body>" +
	"<h1>My Primera Pagina con ESP32 - Station Mode &#128522;</h1>" +
	"</body>" +
	"</html>"
