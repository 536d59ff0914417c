package httpmsg

import (
	"strconv"
	"strings"
)

const htmlContentType = "text/html; charset=iso-8859-1"

// Forbidden is sent instead of contacting a blocked host.
func Forbidden() *Response {
	return htmlPage(403, "Forbidden", "The requested URL cannot be accessed.")
}

// NotImplemented is sent for methods other than GET/HEAD and versions other
// than HTTP/1.1.
func NotImplemented() *Response {
	return htmlPage(501, "Not Implemented", "The request method or the http version is not implemented.")
}

// GatewayTimeout is sent when the origin server stops answering.
func GatewayTimeout() *Response {
	return htmlPage(504, "Gateway Timeout", "The requested host cannot be reached.")
}

// Text wraps a proxy-level message such as "Unknown host: x" in a 200
// plain-text response.
func Text(msg string) *Response {
	return synthesize(200, "OK", "text/plain; charset=utf-8", msg+"\r\n")
}

func htmlPage(status int, reason, msg string) *Response {
	title := strconv.Itoa(status) + " " + reason
	body := "<html><head>\n" +
		"<title>" + title + "</title>\n" +
		"</head><body>\n" +
		"<h1>" + title + "</h1>\n" +
		"<p>" + msg + "</p>\n" +
		"<hr>\n" +
		"</body></html>\n"
	return synthesize(status, reason, htmlContentType, body)
}

func synthesize(status int, reason, contentType, body string) *Response {
	var sb strings.Builder
	sb.WriteString("HTTP/1.1 ")
	sb.WriteString(strconv.Itoa(status))
	sb.WriteByte(' ')
	sb.WriteString(reason)
	sb.WriteString("\r\n")

	h := Header{
		"Content-Length: " + strconv.Itoa(len(body)),
		"Connection: close",
		"Content-Type: " + contentType,
	}
	h.writeTo(&sb)
	sb.WriteString("\r\n")
	sb.WriteString(body)

	resp, err := parseResponse([]byte(sb.String()), Synthesized)
	if err != nil {
		// Only reachable if the templates above are broken.
		panic("httpmsg: bad synthesized response: " + err.Error())
	}
	return resp
}
