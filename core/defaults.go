package core

import "pkt.systems/snippad/schema"

const defaultHTML = "<h1>Hello!</h1>\n<p>Write HTML, CSS or JavaScript code here and click 'Run Code'.</p>"

const defaultCSS = "/* CSS goes here */"

const defaultJS = `console.log("Hello from Node.js!");
console.log("Current time:", new Date().toLocaleString());

// Simple calculation
a = 5;
b = 3;
console.log(` + "`${a} + ${b} = ${a + b}`" + `);

// Array example
const fruits = ["apple", "banana", "orange"];
console.log("Fruits:", fruits);
console.log("First fruit:", fruits[0]);`

// defaultFiles returns the files a fresh workspace starts with; the first
// one is active.
func defaultFiles() []*file {
	return []*file{
		{ID: 1, Name: "index.html", Language: schema.LanguageHTML, Code: defaultHTML},
		{ID: 2, Name: "style.css", Language: schema.LanguageCSS, Code: defaultCSS},
		{ID: 3, Name: "script.js", Language: schema.LanguageJavaScript, Code: defaultJS},
	}
}

var builtinSnippets = []schema.Snippet{
	{
		ID:       "builtin-for-loop-js",
		Name:     "For Loop (JS)",
		Language: schema.LanguageJavaScript,
		Code:     "for (let i = 0; i < 10; i++) {\n  console.log(i);\n}",
		BuiltIn:  true,
	},
	{
		ID:       "builtin-function-python",
		Name:     "Function (Python)",
		Language: schema.LanguagePython,
		Code:     "def greet(name):\n    print(f\"Hello, {name}!\")",
		BuiltIn:  true,
	},
	{
		ID:       "builtin-hello-cpp",
		Name:     "Hello World (C++)",
		Language: schema.LanguageCPP,
		Code:     "#include <iostream>\nint main() {\n  std::cout << \"Hello, World!\" << std::endl;\n  return 0;\n}",
		BuiltIn:  true,
	},
	{
		ID:       "builtin-html-boilerplate",
		Name:     "HTML Boilerplate",
		Language: schema.LanguageHTML,
		Code:     "<!DOCTYPE html>\n<html>\n<head>\n  <title>Document</title>\n</head>\n<body>\n\n</body>\n</html>",
		BuiltIn:  true,
	},
	{
		ID:       "builtin-css-center",
		Name:     "CSS Center",
		Language: schema.LanguageCSS,
		Code:     ".center {\n  display: flex;\n  justify-content: center;\n  align-items: center;\n}",
		BuiltIn:  true,
	},
	{
		ID:       "builtin-fizzbuzz-python",
		Name:     "FizzBuzz (Python)",
		Language: schema.LanguagePython,
		Code:     "for i in range(1, 101):\n    if i % 15 == 0:\n        print(\"FizzBuzz\")\n    elif i % 3 == 0:\n        print(\"Fizz\")\n    elif i % 5 == 0:\n        print(\"Buzz\")\n    else:\n        print(i)",
		BuiltIn:  true,
	},
}
