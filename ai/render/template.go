package render

// Placeholder is the single slot in Template that receives the rendered HTML body.
const Placeholder = "{{ html_content }}"

// Template is the page the summary is laid out on before it is rasterized.
const Template = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            font-size: 14px;
        }
        h1, h2, h3 {
            font-size: 1.5em;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            font-size: 1em;
        }
        th, td {
            border: 1px solid #ccc;
            padding: 8px;
        }
        pre {
            background-color: #f4f4f4;
            padding: 10px;
            border: 1px solid #ccc;
            border-radius: 4px;
            font-size: 1em;
        }
    </style>
</head>
<body>
    ` + Placeholder + `
</body>
</html>
`
