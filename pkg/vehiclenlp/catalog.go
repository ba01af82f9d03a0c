package vehiclenlp

// makeAliases maps lowercase spellings, Latin and Cyrillic, to canonical
// make names. Multi-word aliases are matched token by token.
var makeAliases = map[string]string{
	"lada": "Lada", "лада": "Lada", "ваз": "Lada", "жигули": "Lada", "vaz": "Lada",
	"uaz": "UAZ", "уаз": "UAZ",
	"toyota": "Toyota", "тойота": "Toyota", "тайота": "Toyota",
	"honda": "Honda", "хонда": "Honda",
	"nissan": "Nissan", "ниссан": "Nissan", "нисан": "Nissan",
	"mazda": "Mazda", "мазда": "Mazda",
	"mitsubishi": "Mitsubishi", "мицубиси": "Mitsubishi", "митсубиси": "Mitsubishi",
	"subaru": "Subaru", "субару": "Subaru",
	"lexus": "Lexus", "лексус": "Lexus",
	"suzuki": "Suzuki", "сузуки": "Suzuki",
	"hyundai": "Hyundai", "хендай": "Hyundai", "хёндай": "Hyundai", "хундай": "Hyundai", "хюндай": "Hyundai",
	"kia": "Kia", "киа": "Kia",
	"volkswagen": "Volkswagen", "vw": "Volkswagen", "фольксваген": "Volkswagen", "фольц": "Volkswagen",
	"skoda": "Skoda", "škoda": "Skoda", "шкода": "Skoda",
	"audi": "Audi", "ауди": "Audi",
	"bmw": "BMW", "бмв": "BMW", "бэха": "BMW",
	"mercedes": "Mercedes-Benz", "mercedes-benz": "Mercedes-Benz", "merc": "Mercedes-Benz", "benz": "Mercedes-Benz",
	"мерседес": "Mercedes-Benz", "мерс": "Mercedes-Benz",
	"opel": "Opel", "опель": "Opel",
	"renault": "Renault", "рено": "Renault",
	"peugeot": "Peugeot", "пежо": "Peugeot",
	"citroen": "Citroen", "ситроен": "Citroen",
	"ford": "Ford", "форд": "Ford",
	"chevrolet": "Chevrolet", "chevy": "Chevrolet", "шевроле": "Chevrolet", "шевролет": "Chevrolet",
	"volvo": "Volvo", "вольво": "Volvo",
	"land rover": "Land Rover", "ленд ровер": "Land Rover",
	"porsche": "Porsche", "порше": "Porsche",
	"jeep": "Jeep", "джип": "Jeep",
	"tesla": "Tesla", "тесла": "Tesla",
	"haval": "Haval", "хавал": "Haval", "хавейл": "Haval",
	"chery": "Chery", "чери": "Chery",
	"geely": "Geely", "джили": "Geely",
	"exeed": "Exeed", "эксид": "Exeed",
	"omoda": "Omoda", "омода": "Omoda",
	"changan": "Changan", "чанган": "Changan",
}

// makeModels lists models per canonical make. Each entry is the canonical
// name followed by extra lowercase spellings.
var makeModels = map[string][][]string{
	"Lada": {
		{"Vesta", "веста"}, {"Granta", "гранта"}, {"Niva", "нива"}, {"Niva Travel", "нива тревел"},
		{"Largus", "ларгус"}, {"XRAY", "xray", "иксрей"}, {"Priora", "приора"}, {"Kalina", "калина"},
		{"2107", "семерка"}, {"2109", "девятка"}, {"2114", "четырнадцатая"},
	},
	"UAZ":           {{"Patriot", "патриот"}, {"Hunter", "хантер"}, {"Буханка", "буханка", "буханк"}},
	"GAZ":           {{"Gazelle", "газель"}, {"Sobol", "соболь"}, {"Volga", "волга"}},
	"Toyota":        {{"Camry", "камри"}, {"Corolla", "королла"}, {"RAV4", "рав4", "рав 4"}, {"Land Cruiser", "ленд крузер", "крузак"}, {"Prado", "прадо"}, {"Highlander", "хайлендер"}, {"Prius", "приус"}},
	"Honda":         {{"Civic", "цивик"}, {"Accord", "аккорд"}, {"CR-V", "срв"}, {"Fit", "фит"}},
	"Nissan":        {{"Qashqai", "кашкай"}, {"X-Trail", "икс-трейл", "х-трейл"}, {"Almera", "альмера"}, {"Note", "ноут"}, {"Juke", "джук"}, {"Teana", "теана"}, {"Leaf", "лиф"}},
	"Mazda":         {{"Mazda3", "3"}, {"Mazda6", "6"}, {"CX-5", "cx5", "сх-5"}, {"CX-30"}},
	"Mitsubishi":    {{"Outlander", "аутлендер"}, {"Lancer", "лансер"}, {"Pajero", "паджеро"}, {"ASX"}},
	"Subaru":        {{"Forester", "форестер"}, {"Outback", "аутбэк"}, {"Impreza", "импреза"}, {"XV"}},
	"Lexus":         {{"RX"}, {"NX"}, {"LX"}, {"ES"}},
	"Suzuki":        {{"Vitara", "витара"}, {"Grand Vitara", "гранд витара"}, {"Jimny", "джимни"}, {"SX4"}},
	"Hyundai":       {{"Solaris", "солярис"}, {"Creta", "крета"}, {"Tucson", "туссан"}, {"Santa Fe", "санта фе"}, {"Elantra", "элантра"}, {"Sonata", "соната"}},
	"Kia":           {{"Rio", "рио"}, {"Sportage", "спортейдж"}, {"Ceed", "сид", "cee'd"}, {"Sorento", "соренто"}, {"Optima", "оптима"}, {"K5"}, {"Soul", "соул"}},
	"Volkswagen":    {{"Polo", "поло"}, {"Golf", "гольф"}, {"Passat", "пассат"}, {"Tiguan", "тигуан"}, {"Jetta", "джетта"}, {"Touareg", "туарег"}},
	"Skoda":         {{"Octavia", "октавия"}, {"Rapid", "рапид"}, {"Kodiaq", "кодиак"}, {"Superb", "суперб"}, {"Fabia", "фабия"}},
	"Audi":          {{"A4"}, {"A6"}, {"A3"}, {"Q5"}, {"Q7"}},
	"BMW":           {{"3 Series", "3 серии", "тройка"}, {"5 Series", "5 серии", "пятерка"}, {"X5", "х5"}, {"X3", "х3"}},
	"Mercedes-Benz": {{"C-Class", "c-класс", "ц-класс"}, {"E-Class", "e-класс", "е-класс"}, {"S-Class", "s-класс"}, {"GLE"}, {"Sprinter", "спринтер"}},
	"Opel":          {{"Astra", "астра"}, {"Corsa", "корса"}, {"Vectra", "вектра"}, {"Zafira", "зафира"}},
	"Renault":       {{"Logan", "логан"}, {"Duster", "дастер"}, {"Sandero", "сандеро"}, {"Kaptur", "каптюр"}, {"Arkana", "аркана"}, {"Megane", "меган"}},
	"Peugeot":       {{"308"}, {"408"}, {"3008"}},
	"Citroen":       {{"C4", "с4"}, {"C5", "с5"}, {"Berlingo", "берлинго"}},
	"Ford":          {{"Focus", "фокус"}, {"Mondeo", "мондео"}, {"Kuga", "куга"}, {"Fiesta", "фиеста"}, {"Transit", "транзит"}, {"F-150"}},
	"Chevrolet":     {{"Niva", "нива"}, {"Cruze", "круз"}, {"Aveo", "авео"}, {"Lacetti", "лачетти"}, {"Cobalt", "кобальт"}},
	"Volvo":         {{"XC90"}, {"XC60"}, {"S60"}},
	"Land Rover":    {{"Range Rover", "рендж ровер"}, {"Discovery", "дискавери"}, {"Defender", "дефендер"}},
	"Porsche":       {{"Cayenne", "кайен"}, {"Macan", "макан"}, {"911"}},
	"Jeep":          {{"Grand Cherokee", "гранд чероки"}, {"Cherokee", "чероки"}, {"Wrangler", "вранглер"}},
	"Tesla":         {{"Model 3"}, {"Model Y"}, {"Model S"}, {"Model X"}},
	"Haval":         {{"Jolion", "джолион"}, {"F7", "ф7"}, {"H6"}, {"Dargo", "дарго"}},
	"Chery":         {{"Tiggo 4", "тигго 4"}, {"Tiggo 7", "тигго 7"}, {"Tiggo 8", "тигго 8"}},
	"Geely":         {{"Coolray", "кулрэй", "кулрей"}, {"Atlas", "атлас"}, {"Monjaro", "монжаро"}, {"Tugella", "тугела"}},
	"Exeed":         {{"TXL"}, {"LX"}, {"VX"}},
	"Omoda":         {{"C5"}},
	"Changan":       {{"CS35"}, {"CS55"}, {"UNI-K"}},
}
