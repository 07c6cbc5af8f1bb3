package modes

// Challenge 内置的练习题目，供 examples 子命令展示。
type Challenge struct {
	Key         string
	Name        string
	Description string
	Challenge   string
	URL         string
	Hint        string
	Solution    string
}

// ExampleChallenges 自带的 CTF 练习集。
var ExampleChallenges = []Challenge{
	{
		Key:         "base64_flag",
		Name:        "Simple Base64 Flag",
		Description: "Decode this base64 string to find the flag",
		Challenge:   "RkxBR3tiYXNlNjRfaXNfZWFzeX0=",
		Hint:        "Use base64_decode tool",
		Solution:    "FLAG{base64_is_easy}",
	},
	{
		Key:         "nested_encoding",
		Name:        "Nested Encoding",
		Description: "The flag is encoded multiple times",
		Challenge:   "VTBaQlIxdGlZWE5sTmpSZmJtVnpkR1ZrWDJWdVkyOWthVzVuZlE9PQ==",
		Hint:        "Decode multiple times",
		Solution:    "FLAG{base64_nested_encoding}",
	},
	{
		Key:         "web_challenge",
		Name:        "Web Source Flag",
		Description: "Find the flag hidden in a webpage",
		URL:         "Create a simple HTML file with flag in comment",
		Hint:        "Check HTML comments",
		Solution:    "FLAG{hidden_in_html}",
	},
	{
		Key:         "header_flag",
		Name:        "HTTP Header Flag",
		Description: "The flag is in an HTTP header",
		URL:         "Server responds with X-Flag header",
		Hint:        "Check response headers",
		Solution:    "FLAG{check_the_headers}",
	},
}
